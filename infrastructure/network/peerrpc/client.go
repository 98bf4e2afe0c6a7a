package peerrpc

import (
	"context"

	"github.com/pkg/errors"
	"github.com/pocnet/pocd/app/appmessage"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Client sends requests to a single remote peer.
type Client struct {
	address    string
	connection *grpc.ClientConn
}

// Dial returns a client of the peer at address. The connection is
// established lazily, on the first request.
func Dial(address string, options ...grpc.DialOption) (*Client, error) {
	options = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(
			grpc.ForceCodec(jsonCodec{}),
			grpc.MaxCallRecvMsgSize(appmessage.MaxMessagePayload),
			grpc.MaxCallSendMsgSize(appmessage.MaxMessagePayload)),
	}, options...)

	connection, err := grpc.NewClient(address, options...)
	if err != nil {
		return nil, errors.Wrapf(err, "error connecting to %s", address)
	}
	return &Client{
		address:    address,
		connection: connection,
	}, nil
}

func invoke[Response any](ctx context.Context, c *Client, method string, request interface{}) (*Response, error) {
	response := new(Response)
	err := c.connection.Invoke(ctx, fullMethod(method), request, response)
	if err != nil {
		return nil, errors.Wrapf(err, "error calling %s on %s", method, c.address)
	}
	return response, nil
}

// GetCumulativeDifficulty asks the peer for its chain height and
// cumulative difficulty.
func (c *Client) GetCumulativeDifficulty(ctx context.Context,
	request *appmessage.GetCumulativeDifficultyRequestMessage) (*appmessage.GetCumulativeDifficultyResponseMessage, error) {

	return invoke[appmessage.GetCumulativeDifficultyResponseMessage](ctx, c, methodGetCumulativeDifficulty, request)
}

// GetMilestoneBlockIDs asks the peer for milestone block ids.
func (c *Client) GetMilestoneBlockIDs(ctx context.Context,
	request *appmessage.GetMilestoneBlockIDsRequestMessage) (*appmessage.GetMilestoneBlockIDsResponseMessage, error) {

	return invoke[appmessage.GetMilestoneBlockIDsResponseMessage](ctx, c, methodGetMilestoneBlockIDs, request)
}

// GetNextBlockIDs asks the peer for the ids following a block.
func (c *Client) GetNextBlockIDs(ctx context.Context,
	request *appmessage.GetNextBlockIDsRequestMessage) (*appmessage.GetNextBlockIDsResponseMessage, error) {

	return invoke[appmessage.GetNextBlockIDsResponseMessage](ctx, c, methodGetNextBlockIDs, request)
}

// GetNextBlocks asks the peer for the blocks following a block.
func (c *Client) GetNextBlocks(ctx context.Context,
	request *appmessage.GetNextBlocksRequestMessage) (*appmessage.GetNextBlocksResponseMessage, error) {

	return invoke[appmessage.GetNextBlocksResponseMessage](ctx, c, methodGetNextBlocks, request)
}

// ProcessBlock announces a block to the peer.
func (c *Client) ProcessBlock(ctx context.Context,
	request *appmessage.ProcessBlockRequestMessage) (*appmessage.ProcessBlockResponseMessage, error) {

	return invoke[appmessage.ProcessBlockResponseMessage](ctx, c, methodProcessBlock, request)
}

// Close closes the connection to the peer.
func (c *Client) Close() error {
	return errors.WithStack(c.connection.Close())
}
