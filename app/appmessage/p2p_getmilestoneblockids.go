package appmessage

// GetMilestoneBlockIDsRequestMessage asks a peer for ids of blocks spread
// backwards over its chain. The first request of a search names our tip in
// LastBlockID; follow-ups name the last milestone received in
// LastMilestoneBlockID.
type GetMilestoneBlockIDsRequestMessage struct {
	LastBlockID          string `json:"lastBlockId,omitempty"`
	LastMilestoneBlockID string `json:"lastMilestoneBlockId,omitempty"`
}

// Command returns the protocol command string for the message
func (msg *GetMilestoneBlockIDsRequestMessage) Command() MessageCommand {
	return CmdGetMilestoneBlockIDsRequest
}

// NewGetMilestoneBlockIDsRequestMessage returns a instance of the message
func NewGetMilestoneBlockIDsRequestMessage(lastBlockID string,
	lastMilestoneBlockID string) *GetMilestoneBlockIDsRequestMessage {

	return &GetMilestoneBlockIDsRequestMessage{
		LastBlockID:          lastBlockID,
		LastMilestoneBlockID: lastMilestoneBlockID,
	}
}

// GetMilestoneBlockIDsResponseMessage lists milestone block ids, newest
// first. Last is set when the requester's tip is known to the responder,
// meaning it has nothing more to offer.
type GetMilestoneBlockIDsResponseMessage struct {
	MilestoneBlockIDs []string `json:"milestoneBlockIds"`
	Last              bool     `json:"last,omitempty"`
}

// Command returns the protocol command string for the message
func (msg *GetMilestoneBlockIDsResponseMessage) Command() MessageCommand {
	return CmdGetMilestoneBlockIDsResponse
}

// NewGetMilestoneBlockIDsResponseMessage returns a instance of the message
func NewGetMilestoneBlockIDsResponseMessage(milestoneBlockIDs []string,
	last bool) *GetMilestoneBlockIDsResponseMessage {

	return &GetMilestoneBlockIDsResponseMessage{
		MilestoneBlockIDs: milestoneBlockIDs,
		Last:              last,
	}
}
