package line

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleWebhook = `{
  "destination": "xxxxxxxxxx",
  "events": [
    {
      "replyToken": "nHuyWiB7yP5Zw52FIkcQobQuGDXCTA",
      "type": "message",
      "mode": "active",
      "timestamp": 1462629479859,
      "source": {"type": "user", "userId": "U4af4980629"},
      "webhookEventId": "01FZ74A0TDDPYRVKNK77XKC3ZR",
      "deliveryContext": {"isRedelivery": false},
      "message": {"id": "444573844083572737", "type": "text", "text": "@All 你好", "quoteToken": "q3Plxr4AgKd..."}
    },
    {
      "type": "follow",
      "timestamp": 1462629479860,
      "source": {"type": "user", "userId": "U4af4980629"},
      "replyToken": "abc",
      "follow": {"isUnblocked": false}
    },
    {
      "type": "message",
      "timestamp": 1462629479861,
      "source": {"type": "group", "groupId": "Ca56f94637c"},
      "replyToken": "def",
      "message": {"id": "325708", "type": "sticker", "packageId": "1", "stickerId": "1"}
    }
  ]
}`

func TestParse(t *testing.T) {
	w, err := Parse([]byte(sampleWebhook))
	require.NoError(t, err)
	require.Len(t, w.Events, 3)

	text := w.Events[0]
	assert.True(t, text.IsText())
	assert.Equal(t, "U4af4980629", text.UserID())
	assert.Equal(t, "@All 你好", text.Message.Text)
	assert.Equal(t, "01FZ74A0TDDPYRVKNK77XKC3ZR", text.WebhookEventID)
	require.NotNil(t, text.DeliveryContext)
	assert.False(t, text.DeliveryContext.IsRedelivery)

	assert.Equal(t, EventFollow, w.Events[1].Type)
	assert.False(t, w.Events[1].IsText())

	sticker := w.Events[2]
	assert.False(t, sticker.IsText())
	assert.Empty(t, sticker.UserID())
}

func TestParseEmptyEvents(t *testing.T) {
	w, err := Parse([]byte(`{"destination":"U1","events":[]}`))
	require.NoError(t, err)
	assert.Empty(t, w.Events)
}

func TestParseRejects(t *testing.T) {
	cases := map[string]string{
		"empty body":          ``,
		"truncated":           `{"destination":"U1","events":[{"type":`,
		"no destination":      `{"events":[]}`,
		"no events":           `{"destination":"U1"}`,
		"null events":         `{"destination":"U1","events":null}`,
		"event without type":  `{"destination":"U1","events":[{"timestamp":1,"source":{"type":"user"}}]}`,
		"zero timestamp":      `{"destination":"U1","events":[{"type":"follow","timestamp":0,"source":{"type":"user"}}]}`,
		"source without type": `{"destination":"U1","events":[{"type":"follow","timestamp":1,"source":{}}]}`,
		"message event bare":  `{"destination":"U1","events":[{"type":"message","timestamp":1,"source":{"type":"user"}}]}`,
		"wrong field type":    `{"destination":"U1","events":[{"type":"follow","timestamp":"now","source":{"type":"user"}}]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(body))
			assert.ErrorIs(t, err, ErrInvalidPayload)
		})
	}
}
