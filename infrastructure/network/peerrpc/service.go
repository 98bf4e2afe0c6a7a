package peerrpc

import (
	"context"

	"github.com/pocnet/pocd/app/appmessage"
	"google.golang.org/grpc"
	"google.golang.org/grpc/peer"
)

const serviceName = "pocd.PeerService"

// Handler answers the requests of remote peers.
type Handler interface {
	GetCumulativeDifficulty(ctx context.Context,
		request *appmessage.GetCumulativeDifficultyRequestMessage) (*appmessage.GetCumulativeDifficultyResponseMessage, error)
	GetMilestoneBlockIDs(ctx context.Context,
		request *appmessage.GetMilestoneBlockIDsRequestMessage) (*appmessage.GetMilestoneBlockIDsResponseMessage, error)
	GetNextBlockIDs(ctx context.Context,
		request *appmessage.GetNextBlockIDsRequestMessage) (*appmessage.GetNextBlockIDsResponseMessage, error)
	GetNextBlocks(ctx context.Context,
		request *appmessage.GetNextBlocksRequestMessage) (*appmessage.GetNextBlocksResponseMessage, error)
	ProcessBlock(ctx context.Context,
		request *appmessage.ProcessBlockRequestMessage) (*appmessage.ProcessBlockResponseMessage, error)
}

const (
	methodGetCumulativeDifficulty = "GetCumulativeDifficulty"
	methodGetMilestoneBlockIDs    = "GetMilestoneBlockIDs"
	methodGetNextBlockIDs         = "GetNextBlockIDs"
	methodGetNextBlocks           = "GetNextBlocks"
	methodProcessBlock            = "ProcessBlock"
)

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*Handler)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod(methodGetCumulativeDifficulty, Handler.GetCumulativeDifficulty),
		unaryMethod(methodGetMilestoneBlockIDs, Handler.GetMilestoneBlockIDs),
		unaryMethod(methodGetNextBlockIDs, Handler.GetNextBlockIDs),
		unaryMethod(methodGetNextBlocks, Handler.GetNextBlocks),
		unaryMethod(methodProcessBlock, Handler.ProcessBlock),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "peerrpc",
}

func fullMethod(method string) string {
	return "/" + serviceName + "/" + method
}

func unaryMethod[Request any, Response any](method string,
	call func(Handler, context.Context, *Request) (*Response, error)) grpc.MethodDesc {

	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error,
			interceptor grpc.UnaryServerInterceptor) (interface{}, error) {

			request := new(Request)
			if err := dec(request); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(Handler), ctx, request)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: fullMethod(method),
			}
			handler := func(ctx context.Context, request interface{}) (interface{}, error) {
				return call(srv.(Handler), ctx, request.(*Request))
			}
			return interceptor(ctx, request, info, handler)
		},
	}
}

// RemoteAddress returns the address of the peer that sent the request
// being handled in ctx.
func RemoteAddress(ctx context.Context) (string, bool) {
	peerInfo, ok := peer.FromContext(ctx)
	if !ok || peerInfo.Addr == nil {
		return "", false
	}
	return peerInfo.Addr.String(), true
}
