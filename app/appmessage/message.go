package appmessage

import (
	"fmt"
)

// MaxMessagePayload is the maximum bytes a message can be regardless of other
// individual limits imposed by messages themselves.
const MaxMessagePayload = 1024 * 1024 * 32 // 32MB

// MessageCommand is a number that represents the type of a peer message.
type MessageCommand uint32

func (cmd MessageCommand) String() string {
	cmdString, ok := ProtocolMessageCommandToString[cmd]
	if !ok {
		cmdString = "unknown command"
	}
	return fmt.Sprintf("%s [code %d]", cmdString, uint8(cmd))
}

// Commands used in peer requests and responses.
const (
	CmdGetCumulativeDifficultyRequest MessageCommand = iota
	CmdGetCumulativeDifficultyResponse
	CmdGetMilestoneBlockIDsRequest
	CmdGetMilestoneBlockIDsResponse
	CmdGetNextBlockIDsRequest
	CmdGetNextBlockIDsResponse
	CmdGetNextBlocksRequest
	CmdGetNextBlocksResponse
	CmdProcessBlockRequest
	CmdProcessBlockResponse
)

// ProtocolMessageCommandToString maps all protocol message commands to their string representation
var ProtocolMessageCommandToString = map[MessageCommand]string{
	CmdGetCumulativeDifficultyRequest:  "GetCumulativeDifficultyRequest",
	CmdGetCumulativeDifficultyResponse: "GetCumulativeDifficultyResponse",
	CmdGetMilestoneBlockIDsRequest:     "GetMilestoneBlockIDsRequest",
	CmdGetMilestoneBlockIDsResponse:    "GetMilestoneBlockIDsResponse",
	CmdGetNextBlockIDsRequest:          "GetNextBlockIDsRequest",
	CmdGetNextBlockIDsResponse:         "GetNextBlockIDsResponse",
	CmdGetNextBlocksRequest:            "GetNextBlocksRequest",
	CmdGetNextBlocksResponse:           "GetNextBlocksResponse",
	CmdProcessBlockRequest:             "ProcessBlockRequest",
	CmdProcessBlockResponse:            "ProcessBlockResponse",
}

// Message is an interface that describes a peer message.
type Message interface {
	Command() MessageCommand
}
