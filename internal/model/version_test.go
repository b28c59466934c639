package model_test

import (
	"testing"
	"time"

	"github.com/horockey/eureka/internal/model"
	"github.com/stretchr/testify/assert"
)

func Test_LastWriteWins(t *testing.T) {
	t0 := time.Unix(1000, 0)
	t1 := t0.Add(time.Millisecond)

	cases := []struct {
		name     string
		incoming model.Version
		current  model.Version
		wins     bool
	}{
		{"later ts", model.Version{Timestamp: t1, PeerID: "a"}, model.Version{Timestamp: t0, PeerID: "z"}, true},
		{"earlier ts", model.Version{Timestamp: t0, PeerID: "z"}, model.Version{Timestamp: t1, PeerID: "a"}, false},
		{"tie greater peer", model.Version{Timestamp: t0, PeerID: "b"}, model.Version{Timestamp: t0, PeerID: "a"}, true},
		{"tie lesser peer", model.Version{Timestamp: t0, PeerID: "a"}, model.Version{Timestamp: t0, PeerID: "b"}, false},
		{"equal", model.Version{Timestamp: t0, PeerID: "a"}, model.Version{Timestamp: t0, PeerID: "a"}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.wins, model.LastWriteWins(tc.incoming, tc.current))
		})
	}
}
