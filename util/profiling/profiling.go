package profiling

import (
	"context"
	"net"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/pkg/errors"
	"github.com/pocnet/pocd/infrastructure/logger"
	"github.com/pocnet/pocd/util/panics"
)

// Server serves the runtime profiles under /debug/pprof.
type Server struct {
	listener net.Listener
	server   *http.Server
}

// Start starts the profiling server on the given port of every interface.
func Start(port string, log *logger.Logger) (*Server, error) {
	listenAddr := net.JoinHostPort("", port)
	listener, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to listen on %s", listenAddr)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	mux.Handle("/", http.RedirectHandler("/debug/pprof/", http.StatusSeeOther))

	s := &Server{
		listener: listener,
		server:   &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second},
	}

	spawn := panics.GoroutineWrapperFunc(log)
	spawn("profiling.Start", func() {
		log.Infof("Profile server listening on %s", listener.Addr())
		err := s.server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("Profile server stopped: %s", err)
		}
	})
	return s, nil
}

// Address returns the address the server listens on.
func (s *Server) Address() string {
	return s.listener.Addr().String()
}

// Stop shuts the server down.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}
