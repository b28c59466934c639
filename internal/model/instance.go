package model

import (
	"maps"
	"strings"
	"time"
)

type Status string

const (
	StatusUp           Status = "UP"
	StatusDown         Status = "DOWN"
	StatusStarting     Status = "STARTING"
	StatusOutOfService Status = "OUT_OF_SERVICE"
)

func (s Status) Valid() bool {
	switch s {
	case StatusUp, StatusDown, StatusStarting, StatusOutOfService:
		return true
	}
	return false
}

// ParseStatus accepts status names case-insensitively.
// Empty string is parsed as STARTING.
func ParseStatus(s string) (Status, error) {
	if s == "" {
		return StatusStarting, nil
	}

	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", ValidationError{Field: "status", Reason: "unknown status " + s}
	}
	return st, nil
}

type Key struct {
	ServiceName string
	InstanceID  string
}

func (k Key) String() string {
	return k.ServiceName + "/" + k.InstanceID
}

type ServiceInstance struct {
	ServiceName           string
	InstanceID            string
	Host                  string
	Port                  int
	Status                Status
	Metadata              map[string]string
	LeaseDuration         time.Duration
	RegistrationTimestamp time.Time
	LastRenewalTimestamp  time.Time
}

func (si ServiceInstance) Key() Key {
	return Key{ServiceName: si.ServiceName, InstanceID: si.InstanceID}
}

// Clone returns a copy which shares no mutable state with si.
func (si ServiceInstance) Clone() ServiceInstance {
	res := si
	if si.Metadata != nil {
		res.Metadata = maps.Clone(si.Metadata)
	}
	return res
}

func (si ServiceInstance) Lease() Lease {
	return Lease{
		ServiceName:    si.ServiceName,
		InstanceID:     si.InstanceID,
		ExpiryDeadline: si.LastRenewalTimestamp.Add(si.LeaseDuration),
		Duration:       si.LeaseDuration,
	}
}

// Validate checks fields supplied by a registering client.
// Timestamps are owned by the registry and are not checked.
func (si ServiceInstance) Validate() error {
	switch {
	case strings.TrimSpace(si.ServiceName) == "":
		return ValidationError{Field: "serviceName", Reason: "must not be empty"}
	case strings.Contains(si.ServiceName, "/"):
		return ValidationError{Field: "serviceName", Reason: "must not contain '/'"}
	case strings.TrimSpace(si.InstanceID) == "":
		return ValidationError{Field: "instanceId", Reason: "must not be empty"}
	case strings.Contains(si.InstanceID, "/"):
		return ValidationError{Field: "instanceId", Reason: "must not contain '/'"}
	case strings.TrimSpace(si.Host) == "":
		return ValidationError{Field: "host", Reason: "must not be empty"}
	case si.Port <= 0 || si.Port > 65535:
		return ValidationError{Field: "port", Reason: "must be in range 1..65535"}
	case !si.Status.Valid():
		return ValidationError{Field: "status", Reason: "unknown status " + string(si.Status)}
	case si.LeaseDuration < 0:
		return ValidationError{Field: "leaseDurationSeconds", Reason: "must not be negative"}
	}
	return nil
}

// InstanceRecord is an instance together with the version which produced it.
type InstanceRecord struct {
	Instance ServiceInstance
	Version  Version
}
