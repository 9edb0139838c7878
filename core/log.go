package core

import "github.com/rs/zerolog"

type Log interface {
	Info() *zerolog.Event
	Debug() *zerolog.Event
	Warn() *zerolog.Event
	Error() *zerolog.Event
}

// NopLog discards everything. Handy for read-only helpers and tests.
func NopLog() Log {
	l := zerolog.Nop()
	return &l
}
