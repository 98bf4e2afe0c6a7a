package appmessage

// GetCumulativeDifficultyRequestMessage asks a peer for the height and
// cumulative difficulty of its chain.
type GetCumulativeDifficultyRequestMessage struct{}

// Command returns the protocol command string for the message
func (msg *GetCumulativeDifficultyRequestMessage) Command() MessageCommand {
	return CmdGetCumulativeDifficultyRequest
}

// NewGetCumulativeDifficultyRequestMessage returns a instance of the message
func NewGetCumulativeDifficultyRequestMessage() *GetCumulativeDifficultyRequestMessage {
	return &GetCumulativeDifficultyRequestMessage{}
}

// GetCumulativeDifficultyResponseMessage describes the tip of a peer's
// chain. CumulativeDifficulty is a decimal string.
type GetCumulativeDifficultyResponseMessage struct {
	BlockchainHeight     *uint32 `json:"blockchainHeight,omitempty"`
	CumulativeDifficulty string  `json:"cumulativeDifficulty,omitempty"`
}

// Command returns the protocol command string for the message
func (msg *GetCumulativeDifficultyResponseMessage) Command() MessageCommand {
	return CmdGetCumulativeDifficultyResponse
}

// NewGetCumulativeDifficultyResponseMessage returns a instance of the message
func NewGetCumulativeDifficultyResponseMessage(blockchainHeight uint32,
	cumulativeDifficulty string) *GetCumulativeDifficultyResponseMessage {

	return &GetCumulativeDifficultyResponseMessage{
		BlockchainHeight:     &blockchainHeight,
		CumulativeDifficulty: cumulativeDifficulty,
	}
}
