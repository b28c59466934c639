package model

import (
	"context"
	"slices"
)

// Discovery provides the current set of peer registries.
type Discovery interface {
	GetPeers(ctx context.Context) ([]Peer, error)
}

type Peer struct {
	ID  string
	URL string
}

type StaticDiscovery []Peer

func (d StaticDiscovery) GetPeers(context.Context) ([]Peer, error) {
	return slices.Clone(d), nil
}
