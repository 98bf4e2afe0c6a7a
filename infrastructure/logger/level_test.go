package logger

import "testing"

func TestLevelFromString(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
		ok       bool
	}{
		{input: "trace", expected: LevelTrace, ok: true},
		{input: "DBG", expected: LevelDebug, ok: true},
		{input: "Warn", expected: LevelWarn, ok: true},
		{input: "crt", expected: LevelCritical, ok: true},
		{input: "off", expected: LevelOff, ok: true},
		{input: "loud", expected: LevelInfo, ok: false},
	}
	for _, test := range tests {
		level, ok := LevelFromString(test.input)
		if level != test.expected || ok != test.ok {
			t.Fatalf("TestLevelFromString: %q: expected (%s, %t), got (%s, %t)",
				test.input, test.expected, test.ok, level, ok)
		}
	}
}

func TestLevelString(t *testing.T) {
	if LevelError.String() != "ERR" {
		t.Fatalf("TestLevelString: expected ERR, got %s", LevelError)
	}
	if Level(42).String() != "OFF" {
		t.Fatalf("TestLevelString: levels past off should print OFF, got %s", Level(42))
	}
}
