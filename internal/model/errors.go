package model

import (
	"fmt"
)

var (
	_ error = ValidationError{}
	_ error = NotFoundError{}
	_ error = ReplicationTransientError{}
)

type ValidationError struct {
	Field  string
	Reason string
}

func (err ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", err.Field, err.Reason)
}

type NotFoundError struct {
	ServiceName string
	InstanceID  string
}

func (err NotFoundError) Error() string {
	return fmt.Sprintf("instance %s/%s not found", err.ServiceName, err.InstanceID)
}

type ReplicationTransientError struct {
	Peer     string
	Attempts int
	Err      error
}

func (err ReplicationTransientError) Error() string {
	return fmt.Sprintf("replicating to %s failed after %d attempts: %v", err.Peer, err.Attempts, err.Err)
}

func (err ReplicationTransientError) Unwrap() error {
	return err.Err
}
