package logging

import (
	waLog "go.mau.fi/whatsmeow/util/log"
)

// waLogger adapts Logger to whatsmeow's printf-style logger interface.
type waLogger struct {
	base   *Logger
	l      *Logger
	module string
}

// WhatsApp returns a whatsmeow logger that writes through l, tagged with
// the given module name.
func WhatsApp(l *Logger, module string) waLog.Logger {
	return waLogger{base: l, l: l.With("module", module), module: module}
}

func (w waLogger) Errorf(msg string, args ...interface{}) { w.l.Error().Msgf(msg, args...) }
func (w waLogger) Warnf(msg string, args ...interface{})  { w.l.Warn().Msgf(msg, args...) }
func (w waLogger) Infof(msg string, args ...interface{})  { w.l.Info().Msgf(msg, args...) }
func (w waLogger) Debugf(msg string, args ...interface{}) { w.l.Debug().Msgf(msg, args...) }

// Sub nests modules the way whatsmeow's stdout logger does ("Client/Socket").
func (w waLogger) Sub(module string) waLog.Logger {
	return WhatsApp(w.base, w.module+"/"+module)
}
