package logx

import "github.com/cyclopcam/logs"

// PrefixLogger writes to the underlying log, but all messages are prefixed with a string of your choice
type PrefixLogger struct {
	logs.Log
	Prefix string
}

// Create a new PrefixLogger
func NewPrefixLogger(log logs.Log, prefix string) *PrefixLogger {
	return NewPrefixLoggerNoSpace(log, prefix+" ")
}

// Create a new PrefixLogger, but don't add a space onto 'prefix'
func NewPrefixLoggerNoSpace(log logs.Log, prefix string) *PrefixLogger {
	return &PrefixLogger{
		Log:    log,
		Prefix: prefix,
	}
}

func (l *PrefixLogger) Debugf(format string, a ...any) {
	l.Log.Debugf(l.Prefix+format, a...)
}

func (l *PrefixLogger) Infof(format string, a ...any) {
	l.Log.Infof(l.Prefix+format, a...)
}

func (l *PrefixLogger) Warnf(format string, a ...any) {
	l.Log.Warnf(l.Prefix+format, a...)
}

func (l *PrefixLogger) Errorf(format string, a ...any) {
	l.Log.Errorf(l.Prefix+format, a...)
}
