package model

import (
	"fmt"
	"time"
)

type EventType string

const (
	EventRegister   EventType = "REGISTER"
	EventDeregister EventType = "DEREGISTER"
	EventRenew      EventType = "RENEW"
	EventExpire     EventType = "EXPIRE"
)

func (t EventType) Valid() bool {
	switch t {
	case EventRegister, EventDeregister, EventRenew, EventExpire:
		return true
	}
	return false
}

// Removes reports whether the event deletes its instance.
func (t EventType) Removes() bool {
	return t == EventDeregister || t == EventExpire
}

type PeerEvent struct {
	Type            EventType
	Instance        ServiceInstance
	OriginTimestamp time.Time
	OriginPeerID    string
}

func (e PeerEvent) Key() Key {
	return e.Instance.Key()
}

func (e PeerEvent) Version() Version {
	return Version{
		Timestamp: e.OriginTimestamp,
		PeerID:    e.OriginPeerID,
		Deleted:   e.Type.Removes(),
	}
}

func (e PeerEvent) Validate() error {
	if !e.Type.Valid() {
		return ValidationError{Field: "type", Reason: fmt.Sprintf("unknown event type %q", e.Type)}
	}
	if e.OriginPeerID == "" {
		return ValidationError{Field: "originPeerId", Reason: "must not be empty"}
	}
	if e.OriginTimestamp.IsZero() {
		return ValidationError{Field: "originTimestamp", Reason: "must be set"}
	}
	if e.Type.Removes() {
		if e.Instance.ServiceName == "" || e.Instance.InstanceID == "" {
			return ValidationError{Field: "instance", Reason: "key must be set"}
		}
		return nil
	}
	if err := e.Instance.Validate(); err != nil {
		return fmt.Errorf("validating instance: %w", err)
	}
	return nil
}
