package appmessage

// GetNextBlockIDsRequestMessage asks a peer for the ids of the blocks
// following BlockID on its chain.
type GetNextBlockIDsRequestMessage struct {
	BlockID string `json:"blockId"`
}

// Command returns the protocol command string for the message
func (msg *GetNextBlockIDsRequestMessage) Command() MessageCommand {
	return CmdGetNextBlockIDsRequest
}

// NewGetNextBlockIDsRequestMessage returns a instance of the message
func NewGetNextBlockIDsRequestMessage(blockID string) *GetNextBlockIDsRequestMessage {
	return &GetNextBlockIDsRequestMessage{
		BlockID: blockID,
	}
}

// GetNextBlockIDsResponseMessage lists block ids in chain order.
type GetNextBlockIDsResponseMessage struct {
	NextBlockIDs []string `json:"nextBlockIds"`
}

// Command returns the protocol command string for the message
func (msg *GetNextBlockIDsResponseMessage) Command() MessageCommand {
	return CmdGetNextBlockIDsResponse
}

// NewGetNextBlockIDsResponseMessage returns a instance of the message
func NewGetNextBlockIDsResponseMessage(nextBlockIDs []string) *GetNextBlockIDsResponseMessage {
	return &GetNextBlockIDsResponseMessage{
		NextBlockIDs: nextBlockIDs,
	}
}
