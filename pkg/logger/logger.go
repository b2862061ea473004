// Package logger adapts slog to logging interfaces expected by third-party libraries.
package logger

import (
	"fmt"
	"log/slog"
	"strings"
)

// Migrate satisfies golang-migrate's Logger interface on top of slog.
type Migrate struct {
	log     *slog.Logger
	verbose bool
}

// NewMigrate tags every line with the component name.
func NewMigrate(base *slog.Logger, component string, verbose bool) *Migrate {
	if base == nil {
		base = slog.Default()
	}
	return &Migrate{log: base.With("component", component), verbose: verbose}
}

// Printf logs a migration progress line.
func (m *Migrate) Printf(format string, v ...any) {
	m.log.Info(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

// Verbose reports whether golang-migrate should emit detailed progress.
func (m *Migrate) Verbose() bool {
	return m.verbose
}
