package peerrpc

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/pkg/errors"
	"github.com/pocnet/pocd/app/appmessage"
	"github.com/pocnet/pocd/util/panics"
	"google.golang.org/grpc"
)

// Server serves peer requests over gRPC.
type Server struct {
	listeningAddresses []string
	server             *grpc.Server
}

// NewServer creates a peer RPC server answering with handler.
func NewServer(listeningAddresses []string, handler Handler) *Server {
	server := grpc.NewServer(
		grpc.ForceServerCodec(jsonCodec{}),
		grpc.MaxRecvMsgSize(appmessage.MaxMessagePayload),
		grpc.MaxSendMsgSize(appmessage.MaxMessagePayload),
		grpc.UnaryInterceptor(logRequests))
	server.RegisterService(&serviceDesc, handler)

	return &Server{
		listeningAddresses: listeningAddresses,
		server:             server,
	}
}

// Start listens on every listening address.
func (s *Server) Start() error {
	for _, listenAddress := range s.listeningAddresses {
		err := s.listenOn(listenAddress)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) listenOn(listenAddr string) error {
	listener, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return errors.Wrapf(err, "error listening on %s", listenAddr)
	}
	s.Serve(listener)
	log.Infof("Peer server listening on %s", listener.Addr())
	return nil
}

// Serve serves requests arriving on listener in a new goroutine.
func (s *Server) Serve(listener net.Listener) {
	spawn("Server.Serve", func() {
		err := s.server.Serve(listener)
		if err != nil {
			panics.Exit(log, fmt.Sprintf("error serving peers on %s: %+v", listener.Addr(), err))
		}
	})
}

// Stop stops the server, waiting a short while for in-flight requests.
func (s *Server) Stop() error {
	const stopTimeout = 2 * time.Second

	stopChan := make(chan interface{})
	spawn("Server.Stop", func() {
		s.server.GracefulStop()
		close(stopChan)
	})

	select {
	case <-stopChan:
	case <-time.After(stopTimeout):
		log.Warnf("Could not gracefully stop the peer server: timed out after %s", stopTimeout)
		s.server.Stop()
	}
	return nil
}

func logRequests(ctx context.Context, request interface{}, info *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler) (interface{}, error) {

	remoteAddress, _ := RemoteAddress(ctx)
	log.Tracef("Got %s from %s", info.FullMethod, remoteAddress)
	response, err := handler(ctx, request)
	if err != nil {
		log.Debugf("Error answering %s from %s: %s", info.FullMethod, remoteAddress, err)
	}
	return response, err
}
