package domain

// Turn is one user message paired with the produced response.
type Turn struct {
	UserMessage string `json:"user_message"`
	BotResponse string `json:"bot_response"`
}

// Message roles kept in conversation memory.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// StoredMessage is a serialized chat message entry.
type StoredMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
