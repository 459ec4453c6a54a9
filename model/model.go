// Package model contains the default implementation of the opaque step
// function: one chat-model turn with control-flow tool calling. Provider
// adapters (openai, anthropic) normalize their streaming APIs into Chunk
// events; StepRunner turns one generation into a core.StepOutcome. The
// engine only ever sees the core.StepFunction interface.
package model

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/internal/util"
	"github.com/hupe1980/agentgraph/tool"
)

// ToolCall is a function call request surfaced by a provider, unified across
// vendors.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Chunk is one event of a streaming generation. Partial chunks carry a text
// delta; the final chunk carries any aggregated tool calls and the finish
// reason.
type Chunk struct {
	TextDelta    string     `json:"text_delta,omitempty"`
	Final        bool       `json:"final"`
	ToolCalls    []ToolCall `json:"tool_calls,omitempty"`
	FinishReason string     `json:"finish_reason,omitempty"`
}

// Request is the normalized provider input for one agent step.
type Request struct {
	Instructions string            `json:"instructions"`
	Messages     []core.Message    `json:"messages"`
	Tools        []tool.Definition `json:"tools,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"`
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the minimal provider interface driving one streaming generation.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Chunk, <-chan error)
	Info() Info
}

// MockModel is a lightweight in-memory Model useful for tests and examples.
// Responses are keyed by the last message's content; unmatched prompts get a
// generic echo. A canned tool call can be scripted per prompt instead.
type MockModel struct {
	info      Info
	responses map[string]string
	toolCalls map[string]ToolCall
}

// NewMockModel constructs a MockModel with tool support enabled.
func NewMockModel(name, provider string) *MockModel {
	return &MockModel{
		info:      Info{Name: name, Provider: provider, SupportsTools: true},
		responses: map[string]string{},
		toolCalls: map[string]ToolCall{},
	}
}

// AddResponse registers a deterministic canned completion for a prompt.
func (m *MockModel) AddResponse(prompt, response string) { m.responses[prompt] = response }

// AddToolCall registers a canned tool call for a prompt.
func (m *MockModel) AddToolCall(prompt string, call ToolCall) { m.toolCalls[prompt] = call }

// Generate implements Model; streams per-rune deltas then a final chunk.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Chunk, <-chan error) {
	out := make(chan Chunk, 16)
	errCh := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errCh)
		if len(req.Messages) == 0 {
			errCh <- fmt.Errorf("no messages provided")
			return
		}
		prompt := req.Messages[len(req.Messages)-1].Content
		if call, ok := m.toolCalls[prompt]; ok {
			out <- Chunk{Final: true, ToolCalls: []ToolCall{call}, FinishReason: "tool_calls"}
			return
		}
		full := m.responses[prompt]
		if full == "" {
			full = fmt.Sprintf("Mock response to: %s", prompt)
		}
		for _, r := range full {
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			case out <- Chunk{TextDelta: string(r)}:
			}
		}
		out <- Chunk{Final: true, FinishReason: "stop"}
	}()
	return out, errCh
}

// Info implements Model.
func (m *MockModel) Info() Info { return m.info }

// FoldHistory renders non-chat roles into a provider-friendly shape: tool
// rows (delegate results) become user messages carrying a labeled result so
// providers without matching call ids still see them.
func FoldHistory(history []core.Message) []core.Message {
	out := make([]core.Message, 0, len(history))
	for _, msg := range history {
		if msg.Role == core.RoleTool {
			folded := msg
			folded.Role = core.RoleUser
			folded.Content = "[delegate result] " + msg.Content
			out = append(out, folded)
			continue
		}
		out = append(out, msg)
	}
	return out
}

// JoinInstruction builds the system instruction for an agent step. Template
// markers in the instruction are rendered against the resolved context; the
// variables are also appended in a Context block so non-templated prompts
// can reference them.
func JoinInstruction(agent core.Agent, resolvedContext map[string]any) string {
	instruction, err := util.RenderTemplate(agent.Instruction, resolvedContext)
	if err != nil {
		// A malformed template falls back to the raw instruction text.
		instruction = agent.Instruction
	}
	if len(resolvedContext) == 0 {
		return instruction
	}
	var b strings.Builder
	b.WriteString(instruction)
	b.WriteString("\n\nContext:")
	for k, v := range resolvedContext {
		fmt.Fprintf(&b, "\n- %s: %v", k, v)
	}
	return b.String()
}
