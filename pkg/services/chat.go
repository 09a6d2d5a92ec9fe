package services

import "context"

// ChatMessage is one role-tagged entry of a prompt.
type ChatMessage struct {
	Role    string
	Content string
}

// Completer is a language model backend. Implementations must honour ctx
// cancellation on their network calls.
type Completer interface {
	Complete(ctx context.Context, msgs []ChatMessage) (string, error)
	Model() string
}
