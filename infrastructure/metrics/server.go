package metrics

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server serves the metrics endpoint.
type Server struct {
	httpServer *http.Server
	listener   net.Listener
}

// Start listens on the given address and serves /metrics until Stop is
// called.
func Start(listen string) (*Server, error) {
	listener, err := net.Listen("tcp", listen)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to listen on %s", listen)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	s := &Server{
		httpServer: &http.Server{
			Handler:           mux,
			ReadTimeout:       15 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		listener: listener,
	}

	spawn("metrics.Server.serve", func() {
		log.Infof("Metrics server listening on %s", listener.Addr())
		err := s.httpServer.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("Metrics server stopped: %s", err)
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
	return errors.WithStack(s.httpServer.Shutdown(ctx))
}
