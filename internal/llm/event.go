package llm

// StreamEvent is the closed set of incremental events a provider stream
// yields. Adapters decode their wire format into these at the boundary.
type StreamEvent interface {
	streamEvent()
}

type DeltaType string

const (
	DeltaText      DeltaType = "text_delta"
	DeltaThinking  DeltaType = "thinking_delta"
	DeltaInputJSON DeltaType = "input_json_delta"
)

type MessageStart struct {
	Model string
}

// BlockStart opens a content block. ID and Name are set for tool_use blocks.
type BlockStart struct {
	Index int
	Kind  BlockType
	ID    string
	Name  string
}

// BlockDelta carries an incremental fragment. For DeltaInputJSON, Text is a
// piece of the tool input document.
type BlockDelta struct {
	Index int
	Kind  DeltaType
	Text  string
}

type BlockStop struct {
	Index int
}

type MessageDelta struct {
	StopReason   string
	OutputTokens int64
}

type MessageStop struct{}

// UnknownEvent is a wire event the adapter could not classify.
type UnknownEvent struct {
	Type string
}

func (MessageStart) streamEvent() {}
func (BlockStart) streamEvent()   {}
func (BlockDelta) streamEvent()   {}
func (BlockStop) streamEvent()    {}
func (MessageDelta) streamEvent() {}
func (MessageStop) streamEvent()  {}
func (UnknownEvent) streamEvent() {}
