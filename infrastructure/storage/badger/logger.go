package badger

import (
	"fmt"
	"strings"

	"github.com/felixgeelhaar/ragent/infrastructure/logging"
)

// boltLogger forwards badger's printf-style logging to the structured
// logger. Info lines are demoted to debug; badger is chatty on open.
type boltLogger struct{}

func (boltLogger) Errorf(format string, args ...any) {
	logging.Error().Add(logging.Component("badger")).Msg(line(format, args))
}

func (boltLogger) Warningf(format string, args ...any) {
	logging.Warn().Add(logging.Component("badger")).Msg(line(format, args))
}

func (boltLogger) Infof(format string, args ...any) {
	logging.Debug().Add(logging.Component("badger")).Msg(line(format, args))
}

func (boltLogger) Debugf(format string, args ...any) {
	logging.Trace().Add(logging.Component("badger")).Msg(line(format, args))
}

func line(format string, args []any) string {
	return strings.TrimSpace(fmt.Sprintf(format, args...))
}
