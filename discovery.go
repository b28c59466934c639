package eureka

import (
	"strings"

	"github.com/horockey/eureka/internal/model"
	"github.com/samber/lo"
)

type (
	Discovery       = model.Discovery
	Peer            = model.Peer
	StaticDiscovery = model.StaticDiscovery
)

// NewStaticDiscovery builds discovery from peer base URLs.
// Each peer is identified by its URL; blanks and duplicates are skipped.
func NewStaticDiscovery(urls ...string) StaticDiscovery {
	urls = lo.Uniq(lo.FilterMap(urls, func(el string, _ int) (string, bool) {
		el = strings.TrimRight(strings.TrimSpace(el), "/")
		return el, el != ""
	}))

	return lo.Map(urls, func(el string, _ int) Peer {
		return Peer{ID: el, URL: el}
	})
}
