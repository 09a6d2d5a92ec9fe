// Command webhookctl signs LINE style webhook bodies with the channel secret
// and posts them to a running relay. It is meant for local smoke tests.
//
//	go run ./cmd/webhookctl -text "Hello"
//	go run ./cmd/webhookctl -event follow -user Utest
//	go run ./cmd/webhookctl -file queries.json -out results.json
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"LineRelay/pkg/line"
	"LineRelay/pkg/signature"
)

type ResultItem struct {
	Event      string `json:"event"`
	Text       string `json:"text,omitempty"`
	Status     int    `json:"status"`
	Response   string `json:"response"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms"`
	Timestamp  string `json:"timestamp"`
}

type RunSummary struct {
	RunID     string       `json:"run_id"`
	URL       string       `json:"url"`
	UserID    string       `json:"user_id"`
	StartedAt string       `json:"started_at"`
	EndedAt   string       `json:"ended_at"`
	Results   []ResultItem `json:"results"`
}

// readQueries accepts ["q1", "q2"] or [{"q": "..."}].
func readQueries(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	var arrAny []any
	if err := json.Unmarshal(data, &arrAny); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", path, err)
	}
	out := make([]string, 0, len(arrAny))
	for _, v := range arrAny {
		switch t := v.(type) {
		case string:
			out = append(out, strings.TrimSpace(t))
		case map[string]any:
			if qv, ok := t["q"].(string); ok {
				out = append(out, strings.TrimSpace(qv))
			}
		}
	}
	if len(out) == 0 {
		return nil, errors.New("query file is empty or malformed")
	}
	return out, nil
}

func buildEvent(kind, userID, text string) line.Event {
	id := uuid.NewString()
	ev := line.Event{
		Type:            kind,
		Mode:            "active",
		Timestamp:       time.Now().UnixMilli(),
		Source:          &line.Source{Type: line.SourceUser, UserID: userID},
		WebhookEventID:  id,
		DeliveryContext: &line.DeliveryContext{},
		ReplyToken:      strings.ReplaceAll(id, "-", ""),
	}
	if kind == line.EventMessage {
		ev.Message = &line.Message{ID: fmt.Sprint(time.Now().UnixNano()), Type: line.MessageText, Text: text}
	}
	return ev
}

func send(client *resty.Client, url, secret string, ev line.Event) ResultItem {
	item := ResultItem{Event: ev.Type, Timestamp: time.Now().Format(time.RFC3339)}
	if ev.Message != nil {
		item.Text = ev.Message.Text
	}
	body, err := json.Marshal(line.Webhook{Destination: "Uwebhookctl", Events: []line.Event{ev}})
	if err != nil {
		item.Error = err.Error()
		return item
	}

	start := time.Now()
	resp, err := client.R().
		SetHeader("Content-Type", "application/json").
		SetHeader(signature.Header, signature.Sign(body, secret)).
		SetBody(body).
		Post(url)
	item.DurationMs = time.Since(start).Milliseconds()
	if err != nil {
		item.Error = err.Error()
		return item
	}
	item.Status = resp.StatusCode()
	item.Response = strings.TrimSpace(resp.String())
	return item
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

func main() {
	_ = godotenv.Load()

	url := flag.String("url", "http://localhost:5000/webhook/line", "relay webhook URL")
	secret := flag.String("secret", os.Getenv("LINE_CHANNEL_SECRET"), "channel secret used to sign bodies")
	userID := flag.String("user", "Uwebhookctl000000000000000000000", "LINE user id of the sender")
	kind := flag.String("event", "message", "event type: message or follow")
	text := flag.String("text", "Hello", "message text")
	file := flag.String("file", "", "JSON file with texts to send one by one")
	sleep := flag.Duration("sleep", 500*time.Millisecond, "pause between events sent from -file")
	out := flag.String("out", "", "write a JSON run summary to this path")
	flag.Parse()

	if *secret == "" {
		fmt.Println("error: channel secret is empty; set LINE_CHANNEL_SECRET or pass -secret")
		os.Exit(1)
	}
	if *kind != line.EventMessage && *kind != line.EventFollow {
		fmt.Println("error: -event must be message or follow")
		os.Exit(1)
	}

	texts := []string{*text}
	if *file != "" {
		q, err := readQueries(*file)
		if err != nil {
			fmt.Println("error:", err)
			os.Exit(1)
		}
		texts = q
	}
	if *kind == line.EventFollow {
		texts = texts[:1]
	}

	// the relay waits for the model before answering
	client := resty.New().SetTimeout(90 * time.Second)
	started := time.Now()
	summary := RunSummary{
		RunID:     fmt.Sprintf("whrun-%s", started.Format("20060102-150405")),
		URL:       *url,
		UserID:    *userID,
		StartedAt: started.Format(time.RFC3339),
	}

	failed := false
	for i, t := range texts {
		if i > 0 {
			time.Sleep(*sleep)
		}
		r := send(client, *url, *secret, buildEvent(*kind, *userID, t))
		summary.Results = append(summary.Results, r)
		if r.Error != "" || r.Status != 200 {
			failed = true
		}
		fmt.Printf("[%s] %q -> status=%d %dms %s%s\n", r.Event, r.Text, r.Status, r.DurationMs, r.Response, r.Error)
	}
	summary.EndedAt = time.Now().Format(time.RFC3339)

	if *out != "" {
		if err := writeJSON(*out, summary); err != nil {
			fmt.Println("failed to write JSON:", err)
			os.Exit(1)
		}
		fmt.Println("Saved:", *out)
	}
	if failed {
		os.Exit(2)
	}
}
