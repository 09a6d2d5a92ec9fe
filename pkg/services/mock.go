package services

import (
	"context"
	"fmt"
	"strings"

	"LineRelay/models"
)

// LocalService answers without any network call. It keeps the relay usable
// in development when no model API key is configured.
type LocalService struct{}

func (LocalService) Model() string { return "local" }

func (LocalService) Complete(ctx context.Context, msgs []ChatMessage) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var last string
	turns := 0
	for _, m := range msgs {
		if m.Role == models.RoleUser {
			last = strings.TrimSpace(m.Content)
			turns++
		}
	}
	if last == "" {
		last = "你的訊息"
	}
	b := &strings.Builder{}
	fmt.Fprintf(b, "收到：%s\n\n", truncate(last, 60))
	fmt.Fprintln(b, "目前是離線模式，還沒有連上 AI 服務。")
	fmt.Fprintf(b, "（我參考了最近 %d 則你的訊息）", turns)
	return b.String(), nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}
