package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LineRelay/pkg/line"
	"LineRelay/pkg/signature"
)

func TestSendSignsBody(t *testing.T) {
	var parsed *line.Webhook
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if !signature.Valid(body, r.Header.Get(signature.Header), "s3cret") {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var err error
		parsed, err = line.Parse(body)
		assert.NoError(t, err)
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	r := send(resty.New(), srv.URL, "s3cret", buildEvent(line.EventMessage, "U1", "hi"))
	assert.Equal(t, http.StatusOK, r.Status)
	assert.Empty(t, r.Error)
	require.NotNil(t, parsed)
	require.Len(t, parsed.Events, 1)
	assert.True(t, parsed.Events[0].IsText())
	assert.Equal(t, "hi", parsed.Events[0].Message.Text)
	assert.NotEmpty(t, parsed.Events[0].ReplyToken)

	r = send(resty.New(), srv.URL, "wrong", buildEvent(line.EventFollow, "U1", ""))
	assert.Equal(t, http.StatusUnauthorized, r.Status)
}

func TestReadQueries(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "q.json")

	require.NoError(t, os.WriteFile(p, []byte(`["a", {"q": " b "}, 3]`), 0o644))
	q, err := readQueries(p)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, q)

	require.NoError(t, os.WriteFile(p, []byte(`[]`), 0o644))
	_, err = readQueries(p)
	assert.Error(t, err)
}

func TestWriteJSON(t *testing.T) {
	p := filepath.Join(t.TempDir(), "nested", "out.json")
	require.NoError(t, writeJSON(p, RunSummary{RunID: "x"}))
	b, err := os.ReadFile(p)
	require.NoError(t, err)
	var s RunSummary
	require.NoError(t, json.Unmarshal(b, &s))
	assert.Equal(t, "x", s.RunID)
}
