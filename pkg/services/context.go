package services

import "LineRelay/models"

const DefaultSystemPrompt = "你是一個友善、可靠的 LINE 聊天助理。請使用繁體中文，回答精簡清楚；" +
	"如果問題不夠明確，先簡短詢問使用者想知道的重點。"

// ContextBuilder assembles the prompt sent to the model.
type ContextBuilder struct {
	SystemPrompt string
	Window       int // history entries kept, newest first wins
}

func NewContextBuilder(systemPrompt string, window int) ContextBuilder {
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}
	if window < 0 {
		window = 0
	}
	return ContextBuilder{SystemPrompt: systemPrompt, Window: window}
}

// BuildMessages returns [system, ...last Window history entries, current].
// history must be ordered oldest to newest. The system entry does not count
// against Window.
func (b ContextBuilder) BuildMessages(current string, history []models.Message) []ChatMessage {
	switch {
	case b.Window <= 0:
		history = nil
	case len(history) > b.Window:
		history = history[len(history)-b.Window:]
	}
	out := make([]ChatMessage, 0, len(history)+2)
	out = append(out, ChatMessage{Role: models.RoleSystem, Content: b.SystemPrompt})
	for _, m := range history {
		out = append(out, ChatMessage{Role: m.Role, Content: m.Content})
	}
	return append(out, ChatMessage{Role: models.RoleUser, Content: current})
}
