package line

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReply(t *testing.T) {
	var got replyRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v2/bot/message/reply", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "tok")
	require.NoError(t, c.Reply(context.Background(), "rt", "hello", strings.Repeat("字", MaxTextRunes+10)))

	assert.Equal(t, "rt", got.ReplyToken)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, textMessage{Type: "text", Text: "hello"}, got.Messages[0])
	assert.Equal(t, MaxTextRunes, utf8.RuneCountInString(got.Messages[1].Text))
}

func TestReplyAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"Invalid reply token"}`))
	}))
	defer srv.Close()

	err := NewClient(srv.URL, "tok").Reply(context.Background(), "expired", "hi")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "Invalid reply token", apiErr.Message)
}

func TestReplyWithoutToken(t *testing.T) {
	err := NewClient("http://127.0.0.1:1", "tok").Reply(context.Background(), "", "hi")
	assert.ErrorIs(t, err, ErrNoReplyToken)
}

func TestGetProfile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/bot/profile/U123" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"Not found"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"userId":"U123","displayName":"LINE taro","pictureUrl":"https://profile.line-scdn.net/abc","statusMessage":"Hello"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok")
	p, err := c.GetProfile(context.Background(), "U123")
	require.NoError(t, err)
	assert.Equal(t, "LINE taro", p.DisplayName)
	assert.Equal(t, "https://profile.line-scdn.net/abc", p.PictureURL)

	_, err = c.GetProfile(context.Background(), "Unknown")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
}

func TestTruncateText(t *testing.T) {
	assert.Equal(t, "short", TruncateText("short"))
	long := strings.Repeat("a", MaxTextRunes+1)
	assert.Len(t, TruncateText(long), MaxTextRunes)
	// multi-byte text under the rune limit is untouched
	cjk := strings.Repeat("字", 2000)
	assert.Equal(t, cjk, TruncateText(cjk))
}
