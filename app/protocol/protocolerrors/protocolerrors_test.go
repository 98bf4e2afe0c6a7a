package protocolerrors

import (
	"testing"

	"github.com/pkg/errors"
)

func TestShouldBlacklist(t *testing.T) {
	cause := errors.New("connection reset")
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "plain error", err: cause, expected: false},
		{name: "lenient protocol error", err: Wrap(false, cause, "request failed"), expected: false},
		{name: "strict protocol error", err: Errorf(true, "sent %d ids", 21), expected: true},
		{name: "wrapped strict protocol error", err: errors.Wrap(New(true, "rogue peer"), "sync"), expected: true},
	}
	for _, test := range tests {
		if ShouldBlacklist(test.err) != test.expected {
			t.Fatalf("TestShouldBlacklist: %s: expected %t", test.name, test.expected)
		}
	}

	if !errors.Is(Wrapf(true, cause, "peer %s", "a"), cause) {
		t.Fatalf("TestShouldBlacklist: the cause is not unwrapped")
	}
}
