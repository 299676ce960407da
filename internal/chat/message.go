// Package chat drives one streaming exchange with the agent backend: it
// routes decoded frames into the in-flight assistant message, keeps the
// session's debug log, and substitutes a local reply when the backend is
// unreachable.
package chat

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one entry of a conversation.
type Message struct {
	Role           Role   `json:"role"`
	Content        string `json:"content"`
	AttachmentName string `json:"attachmentName,omitempty"`
}

// Conversation is an ordered, append-only list of messages. Only the last
// assistant message may be rewritten, and only while it is streaming.
type Conversation struct {
	messages []Message
}

// Append adds msg to the end of the conversation.
func (c *Conversation) Append(msg Message) {
	c.messages = append(c.messages, msg)
}

// ReplaceLast swaps the final message for msg. It is a no-op unless the
// final message is an assistant message.
func (c *Conversation) ReplaceLast(msg Message) bool {
	n := len(c.messages)
	if n == 0 || c.messages[n-1].Role != RoleAssistant {
		return false
	}
	c.messages[n-1] = msg
	return true
}

// Messages returns a copy of the conversation.
func (c *Conversation) Messages() []Message {
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len returns the number of messages.
func (c *Conversation) Len() int {
	return len(c.messages)
}
