package line

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	DefaultAPIBase = "https://api.line.me"

	// MaxTextRunes is the longest text message LINE accepts.
	MaxTextRunes = 5000
	// maxReplyMessages is the per-reply message limit.
	maxReplyMessages = 5
)

var ErrNoReplyToken = errors.New("reply token is empty")

// APIError is a non-2xx answer from the Messaging API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("line api: status %d: %s", e.StatusCode, e.Message)
}

type apiErrorBody struct {
	Message string `json:"message"`
	Details []struct {
		Message  string `json:"message"`
		Property string `json:"property"`
	} `json:"details"`
}

type textMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type replyRequest struct {
	ReplyToken string        `json:"replyToken"`
	Messages   []textMessage `json:"messages"`
}

// Profile is the public profile of a LINE user.
type Profile struct {
	UserID        string `json:"userId"`
	DisplayName   string `json:"displayName"`
	PictureURL    string `json:"pictureUrl"`
	StatusMessage string `json:"statusMessage"`
	Language      string `json:"language"`
}

// Client calls the reply and profile endpoints with a channel access token.
type Client struct {
	http *resty.Client
}

func NewClient(baseURL, accessToken string) *Client {
	if baseURL == "" {
		baseURL = DefaultAPIBase
	}
	return &Client{
		http: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetAuthToken(accessToken).
			SetHeader("Content-Type", "application/json").
			SetTimeout(10 * time.Second),
	}
}

// Reply sends up to five text messages with a reply token. Each text is cut
// to MaxTextRunes.
func (c *Client) Reply(ctx context.Context, replyToken string, texts ...string) error {
	if replyToken == "" {
		return ErrNoReplyToken
	}
	if len(texts) > maxReplyMessages {
		texts = texts[:maxReplyMessages]
	}
	body := replyRequest{ReplyToken: replyToken, Messages: make([]textMessage, 0, len(texts))}
	for _, t := range texts {
		body.Messages = append(body.Messages, textMessage{Type: "text", Text: TruncateText(t)})
	}

	var apiErr apiErrorBody
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetError(&apiErr).
		Post("/v2/bot/message/reply")
	if err != nil {
		return fmt.Errorf("line reply: %w", err)
	}
	if resp.IsError() {
		return newAPIError(resp, apiErr)
	}
	return nil
}

// GetProfile fetches the profile of a user who has added the bot.
func (c *Client) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	var p Profile
	var apiErr apiErrorBody
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&p).
		SetError(&apiErr).
		Get("/v2/bot/profile/" + url.PathEscape(userID))
	if err != nil {
		return nil, fmt.Errorf("line profile: %w", err)
	}
	if resp.IsError() {
		return nil, newAPIError(resp, apiErr)
	}
	return &p, nil
}

func newAPIError(resp *resty.Response, body apiErrorBody) *APIError {
	msg := body.Message
	if msg == "" {
		msg = strings.TrimSpace(resp.String())
	}
	if len(body.Details) > 0 {
		msg = fmt.Sprintf("%s (%s: %s)", msg, body.Details[0].Property, body.Details[0].Message)
	}
	return &APIError{StatusCode: resp.StatusCode(), Message: msg}
}

// TruncateText cuts s to MaxTextRunes runes.
func TruncateText(s string) string {
	if len(s) <= MaxTextRunes {
		return s
	}
	r := []rune(s)
	if len(r) <= MaxTextRunes {
		return s
	}
	return string(r[:MaxTextRunes])
}
