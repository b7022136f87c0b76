package whatsapp

import (
	"fmt"

	"github.com/wolfman30/barber-booking-bot/pkg/logging"
	waLog "go.mau.fi/whatsmeow/util/log"
)

// waLogger routes whatsmeow's printf logging into the structured logger.
type waLogger struct {
	logger *logging.Logger
	debug  bool
}

func newWALogger(logger *logging.Logger, module string, debug bool) waLog.Logger {
	return &waLogger{logger: logger.With("module", module), debug: debug}
}

func (l *waLogger) Errorf(msg string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(msg, args...))
}

func (l *waLogger) Warnf(msg string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(msg, args...))
}

func (l *waLogger) Infof(msg string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(msg, args...))
}

func (l *waLogger) Debugf(msg string, args ...interface{}) {
	if l.debug {
		l.logger.Debug(fmt.Sprintf(msg, args...))
	}
}

func (l *waLogger) Sub(module string) waLog.Logger {
	return &waLogger{logger: l.logger.With("submodule", module), debug: l.debug}
}
