/*
Copyright © 2026 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

// Package logging adapts charmbracelet/log to the Logger interfaces of the
// compilation, loader, resolver and watcher packages.
package logging

import (
	"io"

	"github.com/charmbracelet/log"
)

// Logger writes leveled, printf-style messages.
type Logger struct {
	l *log.Logger
}

// New creates a logger writing to w. Debug messages are shown when verbose.
func New(w io.Writer, verbose bool) *Logger {
	level := log.InfoLevel
	if verbose {
		level = log.DebugLevel
	}
	return &Logger{l: log.NewWithOptions(w, log.Options{
		Prefix: "potter",
		Level:  level,
	})}
}

// WithPrefix returns a logger whose messages carry prefix, such as the
// component that logs them.
func (l *Logger) WithPrefix(prefix string) *Logger {
	return &Logger{l: l.l.WithPrefix("potter/" + prefix)}
}

func (l *Logger) Warning(format string, args ...any) { l.l.Warnf(format, args...) }
func (l *Logger) Info(format string, args ...any)    { l.l.Infof(format, args...) }
func (l *Logger) Debug(format string, args ...any)   { l.l.Debugf(format, args...) }
func (l *Logger) Error(format string, args ...any)   { l.l.Errorf(format, args...) }
