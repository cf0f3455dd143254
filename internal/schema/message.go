package schema

// Role tags a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of a conversation: a role and its text.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
