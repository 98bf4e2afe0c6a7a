package appmessage

// GetNextBlocksRequestMessage asks a peer for the blocks following BlockID
// on its chain.
type GetNextBlocksRequestMessage struct {
	BlockID string `json:"blockId"`
}

// Command returns the protocol command string for the message
func (msg *GetNextBlocksRequestMessage) Command() MessageCommand {
	return CmdGetNextBlocksRequest
}

// NewGetNextBlocksRequestMessage returns a instance of the message
func NewGetNextBlocksRequestMessage(blockID string) *GetNextBlocksRequestMessage {
	return &GetNextBlocksRequestMessage{
		BlockID: blockID,
	}
}

// GetNextBlocksResponseMessage holds blocks in chain order.
type GetNextBlocksResponseMessage struct {
	NextBlocks []*BlockJSON `json:"nextBlocks"`
}

// Command returns the protocol command string for the message
func (msg *GetNextBlocksResponseMessage) Command() MessageCommand {
	return CmdGetNextBlocksResponse
}

// NewGetNextBlocksResponseMessage returns a instance of the message
func NewGetNextBlocksResponseMessage(nextBlocks []*BlockJSON) *GetNextBlocksResponseMessage {
	return &GetNextBlocksResponseMessage{
		NextBlocks: nextBlocks,
	}
}
