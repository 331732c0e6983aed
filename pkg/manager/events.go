package manager

import (
	"github.com/lumentra-ai/callagent/pkg/ai/llm"
)

type eventKind int

const (
	evMediaStop eventKind = iota
	evMediaError

	evSTTPartial
	evSTTFinal
	evSTTSpeechStarted
	evSTTSpeechEnded
	evSTTError

	evLLMText
	evLLMToolCall
	evLLMDone
	evLLMError

	evToolResult

	evTTSDone
	evTTSError

	evEndpointTimer
	evBargeInTimer
	evFillerTimer

	evRetryProcessUserTurn
)

// managerEvent is the single envelope type posted onto the actor's event
// channel. Fields are interpreted according to kind; gen ties an event
// back to the turn generation it was produced for, so a stale event from
// an aborted stream is dropped rather than acted on.
type managerEvent struct {
	kind eventKind
	gen  uint64

	text string
	err  error

	toolCall       llm.ToolCall
	toolResultText string
}
