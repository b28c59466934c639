package model

import "time"

type Lease struct {
	ServiceName    string
	InstanceID     string
	ExpiryDeadline time.Time
	Duration       time.Duration
}

// Expired reports whether more than Duration passed since the last renewal.
// An instance renewed exactly Duration ago is still alive.
func (l Lease) Expired(now time.Time) bool {
	return now.After(l.ExpiryDeadline)
}
