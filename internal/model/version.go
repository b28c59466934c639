package model

import "time"

// Version identifies the write which produced the current state of a key.
type Version struct {
	Timestamp time.Time
	PeerID    string
	Deleted   bool
}

type ConflictResolver interface {
	// Wins reports whether incoming must replace current.
	Wins(incoming, current Version) bool
}

type ConflictResolverFunc func(incoming, current Version) bool

func (f ConflictResolverFunc) Wins(incoming, current Version) bool {
	return f(incoming, current)
}

// LastWriteWins orders versions by timestamp, then by peer id.
// Equal versions do not win, so re-delivered events are no-ops.
func LastWriteWins(incoming, current Version) bool {
	if !incoming.Timestamp.Equal(current.Timestamp) {
		return incoming.Timestamp.After(current.Timestamp)
	}
	return incoming.PeerID > current.PeerID
}
