package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// DefaultAgentName is shown for drafts that have not been named yet.
const DefaultAgentName = "Untitled agent"

// Capabilities toggles the tools a draft agent may use.
type Capabilities struct {
	WebBrowsing     bool `json:"webBrowsing" yaml:"webBrowsing"`
	CodeExecution   bool `json:"codeExecution" yaml:"codeExecution"`
	FileSearch      bool `json:"fileSearch" yaml:"fileSearch"`
	ImageGeneration bool `json:"imageGeneration" yaml:"imageGeneration"`
}

// Labels returns human-readable names of the enabled capabilities in a
// stable order.
func (c Capabilities) Labels() []string {
	var labels []string
	if c.WebBrowsing {
		labels = append(labels, "web search")
	}
	if c.CodeExecution {
		labels = append(labels, "code execution")
	}
	if c.FileSearch {
		labels = append(labels, "file search")
	}
	if c.ImageGeneration {
		labels = append(labels, "image generation")
	}
	return labels
}

// AgentDraft is the agent configuration being edited in the studio.
type AgentDraft struct {
	Name              string       `json:"name" yaml:"name"`
	Description       string       `json:"description,omitempty" yaml:"description"`
	SystemInstruction string       `json:"systemInstruction,omitempty" yaml:"systemInstruction"`
	Model             string       `json:"model,omitempty" yaml:"model"`
	Capabilities      Capabilities `json:"enabledCapabilities" yaml:"enabledCapabilities"`
	UpdatedAt         time.Time    `json:"updatedAt,omitempty" yaml:"-"`
}

// DisplayName returns the draft's name, or DefaultAgentName when blank.
func (d AgentDraft) DisplayName() string {
	if name := strings.TrimSpace(d.Name); name != "" {
		return name
	}
	return DefaultAgentName
}

// InstructionPreview returns the system instruction collapsed to one line and
// cut to at most limit runes, with an ellipsis when truncated.
func (d AgentDraft) InstructionPreview(limit int) string {
	preview := strings.Join(strings.Fields(d.SystemInstruction), " ")
	if limit <= 0 || utf8.RuneCountInString(preview) <= limit {
		return preview
	}
	runes := []rune(preview)
	return strings.TrimRight(string(runes[:limit]), " ") + "…"
}

// Field limits enforced by Validate, counted in runes.
const (
	MaxNameLength        = 100
	MaxDescriptionLength = 1000
	MaxInstructionLength = 20000
	MaxModelLength       = 100
)

// ErrInvalidDraft is wrapped by every Validate failure.
var ErrInvalidDraft = errors.New("invalid agent draft")

// Validate checks the draft's field lengths.
func (d AgentDraft) Validate() error {
	fields := []struct {
		name  string
		value string
		limit int
	}{
		{"name", d.Name, MaxNameLength},
		{"description", d.Description, MaxDescriptionLength},
		{"systemInstruction", d.SystemInstruction, MaxInstructionLength},
		{"model", d.Model, MaxModelLength},
	}
	for _, f := range fields {
		if utf8.RuneCountInString(f.value) > f.limit {
			return fmt.Errorf("%w: %s exceeds %d characters", ErrInvalidDraft, f.name, f.limit)
		}
	}
	return nil
}
