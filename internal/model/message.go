package model

// Role tags a message in a conversation
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one role-tagged entry of a conversation history
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCallID string     `json:"tool_call_id,omitempty"` // set on tool-role messages
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`   // set on assistant messages that request tools
}

// ToolCall is a model's request to invoke a declared tool
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // raw JSON
}

// Tool describes a callable function offered to the model
type Tool struct {
	Name        string
	Description string
	Parameters  any // JSON schema
}
