package appmessage

// ProcessBlockRequestMessage announces a freshly forged block to a peer.
type ProcessBlockRequestMessage struct {
	Block *BlockJSON `json:"block"`
}

// Command returns the protocol command string for the message
func (msg *ProcessBlockRequestMessage) Command() MessageCommand {
	return CmdProcessBlockRequest
}

// NewProcessBlockRequestMessage returns a instance of the message
func NewProcessBlockRequestMessage(block *BlockJSON) *ProcessBlockRequestMessage {
	return &ProcessBlockRequestMessage{
		Block: block,
	}
}

// ProcessBlockResponseMessage tells whether the announced block was staged.
type ProcessBlockResponseMessage struct {
	Accepted bool `json:"accepted"`
}

// Command returns the protocol command string for the message
func (msg *ProcessBlockResponseMessage) Command() MessageCommand {
	return CmdProcessBlockResponse
}

// NewProcessBlockResponseMessage returns a instance of the message
func NewProcessBlockResponseMessage(accepted bool) *ProcessBlockResponseMessage {
	return &ProcessBlockResponseMessage{
		Accepted: accepted,
	}
}
