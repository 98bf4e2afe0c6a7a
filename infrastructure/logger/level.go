package logger

import "strings"

// Level is the minimum severity a subsystem logger writes.
type Level uint32

// Levels, from the most to the least verbose.
const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	LevelCritical
	LevelOff
)

// levelNames holds the tag printed in log lines and the long name accepted
// by --debuglevel, per level.
var levelNames = [...]struct{ tag, name string }{
	LevelTrace:    {"TRC", "trace"},
	LevelDebug:    {"DBG", "debug"},
	LevelInfo:     {"INF", "info"},
	LevelWarn:     {"WRN", "warn"},
	LevelError:    {"ERR", "error"},
	LevelCritical: {"CRT", "critical"},
	LevelOff:      {"OFF", "off"},
}

// LevelFromString accepts both the long name and the tag of a level, in any
// case. Unknown names yield LevelInfo and false.
func LevelFromString(s string) (Level, bool) {
	s = strings.ToLower(s)
	for level, names := range levelNames {
		if s == names.name || s == strings.ToLower(names.tag) {
			return Level(level), true
		}
	}
	return LevelInfo, false
}

// String returns the tag used in log lines.
func (l Level) String() string {
	if l >= LevelOff {
		return levelNames[LevelOff].tag
	}
	return levelNames[l].tag
}
