package chat

import (
	"strings"

	"github.com/google/uuid"
)

// Mode tells whether replies come from the live backend or the local fallback.
type Mode string

const (
	ModeLive Mode = "live"
	ModeMock Mode = "mock"
)

// Snapshot is the state of the in-flight reply after an update.
type Snapshot struct {
	ExchangeID string
	Text       string
	Mode       Mode
}

// Exchange is the state of one request/response cycle: the accumulated reply
// text and where diagnostics go. It is owned by a single goroutine and is
// discarded once the reply is complete.
type Exchange struct {
	id       string
	text     strings.Builder
	mode     Mode
	frames   int
	sink     DebugSink
	onUpdate func(Snapshot)
}

// NewExchange creates exchange state. sink and onUpdate may be nil.
func NewExchange(sink DebugSink, onUpdate func(Snapshot)) *Exchange {
	if sink == nil {
		sink = MultiSink(nil)
	}
	return &Exchange{
		id:       uuid.NewString(),
		mode:     ModeLive,
		sink:     sink,
		onUpdate: onUpdate,
	}
}

// ID returns the exchange identifier.
func (e *Exchange) ID() string { return e.id }

// Text returns the reply accumulated so far.
func (e *Exchange) Text() string { return e.text.String() }

// Mode returns the current presentation mode.
func (e *Exchange) Mode() Mode { return e.mode }

// Frames returns how many frames have been routed.
func (e *Exchange) Frames() int { return e.frames }

// SetMode switches the presentation mode.
func (e *Exchange) SetMode(m Mode) { e.mode = m }

// Log records a diagnostic entry.
func (e *Exchange) Log(t EntryType, content string, metadata map[string]any) {
	e.sink.Log(t, content, metadata)
}

// Fail appends an inline error marker for err and logs it.
func (e *Exchange) Fail(err error) {
	e.appendError(err.Error())
	e.sink.Log(EntryError, err.Error(), nil)
	e.publish()
}

func (e *Exchange) appendText(s string) {
	e.text.WriteString(s)
}

func (e *Exchange) appendError(msg string) {
	if e.text.Len() > 0 && !strings.HasSuffix(e.text.String(), "\n") {
		e.text.WriteString("\n")
	}
	e.text.WriteString("[Error] ")
	e.text.WriteString(msg)
}

// separate starts a new paragraph when text has already been accumulated.
func (e *Exchange) separate() {
	if e.text.Len() == 0 {
		return
	}
	current := e.text.String()
	switch {
	case strings.HasSuffix(current, "\n\n"):
	case strings.HasSuffix(current, "\n"):
		e.text.WriteString("\n")
	default:
		e.text.WriteString("\n\n")
	}
}

func (e *Exchange) publish() {
	if e.onUpdate == nil {
		return
	}
	e.onUpdate(Snapshot{ExchangeID: e.id, Text: e.text.String(), Mode: e.mode})
}
