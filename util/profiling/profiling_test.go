package profiling

import (
	"net"
	"net/http"
	"testing"

	"github.com/pocnet/pocd/infrastructure/logger"
)

func TestStart(t *testing.T) {
	// Pick a free port first since Start only takes a port.
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("TestStart: Listen: %s", err)
	}
	_, port, _ := net.SplitHostPort(listener.Addr().String())
	listener.Close()

	server, err := Start(port, logger.RegisterSubSystem("PROF"))
	if err != nil {
		t.Fatalf("TestStart: Start: %s", err)
	}
	defer server.Stop()

	response, err := http.Get("http://127.0.0.1:" + port + "/debug/pprof/")
	if err != nil {
		t.Fatalf("TestStart: Get: %s", err)
	}
	response.Body.Close()
	if response.StatusCode != http.StatusOK {
		t.Fatalf("TestStart: unexpected status %d", response.StatusCode)
	}
}
