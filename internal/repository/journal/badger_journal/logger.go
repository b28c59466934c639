package badger_journal

import (
	"strings"

	"github.com/dgraph-io/badger"
	"github.com/rs/zerolog"
)

var _ badger.Logger = zerologAdapter{}

type zerologAdapter struct {
	logger zerolog.Logger
}

// NewLogger routes badger internals into zerolog.
// Badger's info chatter is lowered to debug.
func NewLogger(logger zerolog.Logger) badger.Logger {
	return zerologAdapter{logger: logger}
}

func (a zerologAdapter) Errorf(format string, args ...interface{}) {
	a.logger.Error().Msgf(strings.TrimSpace(format), args...)
}

func (a zerologAdapter) Warningf(format string, args ...interface{}) {
	a.logger.Warn().Msgf(strings.TrimSpace(format), args...)
}

func (a zerologAdapter) Infof(format string, args ...interface{}) {
	a.logger.Debug().Msgf(strings.TrimSpace(format), args...)
}

func (a zerologAdapter) Debugf(format string, args ...interface{}) {
	a.logger.Trace().Msgf(strings.TrimSpace(format), args...)
}
