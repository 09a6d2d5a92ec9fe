// Package relay turns verified LINE webhook events into stored conversation
// turns and replies.
package relay

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"LineRelay/models"
	"LineRelay/pkg/cache"
	"LineRelay/pkg/feed"
	"LineRelay/pkg/line"
	"LineRelay/pkg/metrics"
	"LineRelay/pkg/services"
	"LineRelay/pkg/store"
)

const (
	outcomeHandled   = "handled"
	outcomeFailed    = "failed"
	outcomeIgnored   = "ignored"
	outcomeDuplicate = "duplicate"
)

// Generator produces one assistant reply for a prompt.
type Generator interface {
	Generate(ctx context.Context, msgs []services.ChatMessage) (string, error)
	Model() string
}

// LineAPI is the part of the Messaging API the dispatcher calls.
type LineAPI interface {
	Reply(ctx context.Context, replyToken string, texts ...string) error
	GetProfile(ctx context.Context, userID string) (*line.Profile, error)
}

// SlotFunc blocks until the user may start another generation.
type SlotFunc func(ctx context.Context, userID string) (release func(), err error)

type Options struct {
	Store     *store.Store
	Builder   services.ContextBuilder
	Generator Generator
	Line      LineAPI
	Cache     *cache.Cache // profiles; optional
	Seen      *cache.Cache // webhookEventId dedup; optional, should have no capacity limit
	Feed      *feed.Hub    // optional
	Slots     SlotFunc     // optional
	Logger    zerolog.Logger

	EventDedupTTL   time.Duration
	ProfileCacheTTL time.Duration
}

// Dispatcher handles the events of one webhook request, one after another.
type Dispatcher struct {
	store      *store.Store
	builder    services.ContextBuilder
	gen        Generator
	line       LineAPI
	cache      *cache.Cache
	seen       *cache.Cache
	feed       *feed.Hub
	slots      SlotFunc
	log        zerolog.Logger
	dedupTTL   time.Duration
	profileTTL time.Duration
}

func NewDispatcher(o Options) *Dispatcher {
	d := &Dispatcher{
		store:      o.Store,
		builder:    o.Builder,
		gen:        o.Generator,
		line:       o.Line,
		cache:      o.Cache,
		seen:       o.Seen,
		feed:       o.Feed,
		slots:      o.Slots,
		log:        o.Logger.With().Str("component", "dispatcher").Logger(),
		dedupTTL:   o.EventDedupTTL,
		profileTTL: o.ProfileCacheTTL,
	}
	if d.slots == nil {
		d.slots = func(context.Context, string) (func(), error) { return func() {}, nil }
	}
	if d.dedupTTL <= 0 {
		d.dedupTTL = 10 * time.Minute
	}
	if d.profileTTL <= 0 {
		d.profileTTL = time.Hour
	}
	return d
}

// Dispatch handles every event in arrival order. A failing event never stops
// the batch; when it carries a reply token the user gets a fallback text.
func (d *Dispatcher) Dispatch(ctx context.Context, log zerolog.Logger, events []line.Event) {
	for i := range events {
		d.handleEvent(ctx, log, &events[i])
	}
}

func (d *Dispatcher) handleEvent(ctx context.Context, log zerolog.Logger, ev *line.Event) {
	log = log.With().
		Str("event_type", ev.Type).
		Str("user_id", ev.UserID()).
		Str("webhook_event_id", ev.WebhookEventID).
		Logger()

	if ev.WebhookEventID != "" && !d.seen.Remember(cache.KeyFromStrings("event", ev.WebhookEventID), d.dedupTTL) {
		log.Info().Msg("skipping already processed event")
		metrics.EventsTotal.WithLabelValues(ev.Type, outcomeDuplicate).Inc()
		return
	}
	if ev.DeliveryContext != nil && ev.DeliveryContext.IsRedelivery {
		log.Info().Msg("handling redelivered event")
	}

	outcome, err := d.route(ctx, log, ev)
	if err != nil {
		outcome = outcomeFailed
		log.Error().Err(err).Msg("event handling failed")
		d.reply(ctx, log, ev, FallbackFor(err))
	}
	metrics.EventsTotal.WithLabelValues(ev.Type, outcome).Inc()
}

// route runs the handler for ev. Panics come back as errors.
func (d *Dispatcher) route(ctx context.Context, log zerolog.Logger, ev *line.Event) (outcome string, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("stack", string(debug.Stack())).Msg("event handler panicked")
			err = fmt.Errorf("event handler panic: %v", r)
		}
	}()

	switch {
	case ev.IsText():
		return d.handleText(ctx, log, ev)
	case ev.Type == line.EventFollow:
		return d.handleFollow(ctx, log, ev)
	default:
		msgType := ""
		if ev.Message != nil {
			msgType = ev.Message.Type
		}
		log.Debug().Str("message_type", msgType).Msg("ignoring unsupported event")
		return outcomeIgnored, nil
	}
}

func (d *Dispatcher) handleText(ctx context.Context, log zerolog.Logger, ev *line.Event) (string, error) {
	text := strings.TrimSpace(ev.Message.Text)
	if services.IsHelpCommand(text) {
		d.reply(ctx, log, ev, services.HelpText)
		return outcomeHandled, nil
	}
	if text == "" {
		return outcomeIgnored, nil
	}
	uid := ev.UserID()
	if uid == "" {
		log.Warn().Str("source_type", ev.Source.Type).Msg("text event without user id, ignoring")
		return outcomeIgnored, nil
	}

	profile := d.profile(ctx, log, uid)
	user, err := d.store.GetOrCreateUser(ctx, uid, store.Profile{DisplayName: profile.DisplayName, PictureURL: profile.PictureURL})
	if err != nil {
		return "", err
	}
	conv, err := d.store.GetOrCreateConversation(ctx, user.ID, uid)
	if err != nil {
		return "", err
	}
	// read before the new turn is stored so it is not sent twice
	history, err := d.store.GetConversationHistory(ctx, conv.ID, d.builder.Window)
	if err != nil {
		return "", err
	}

	userMsg, err := d.store.SaveMessage(ctx, conv.ID, models.RoleUser, text, map[string]any{
		"line_message_id":     ev.Message.ID,
		"reply_token_present": ev.ReplyToken != "",
	})
	if err != nil {
		return "", err
	}
	d.publish(user, userMsg)

	release, err := d.slots(ctx, uid)
	if err != nil {
		return "", fmt.Errorf("wait for generation slot: %w", err)
	}
	defer release()

	answer, err := d.gen.Generate(ctx, d.builder.BuildMessages(text, history))
	if err != nil {
		return "", err
	}

	botMsg, err := d.store.SaveMessage(ctx, conv.ID, models.RoleAssistant, answer, map[string]any{"model": d.gen.Model()})
	if err != nil {
		// the answer is still worth sending
		log.Error().Err(err).Uint("conversation_id", conv.ID).Msg("failed to save assistant message")
	} else {
		d.publish(user, botMsg)
	}

	d.reply(ctx, log, ev, answer)
	return outcomeHandled, nil
}

func (d *Dispatcher) handleFollow(ctx context.Context, log zerolog.Logger, ev *line.Event) (string, error) {
	uid := ev.UserID()
	if uid == "" {
		d.reply(ctx, log, ev, services.WelcomeText(""))
		return outcomeHandled, nil
	}
	profile := d.profile(ctx, log, uid)
	user, err := d.store.GetOrCreateUser(ctx, uid, store.Profile{DisplayName: profile.DisplayName, PictureURL: profile.PictureURL})
	if err != nil {
		return "", err
	}
	d.reply(ctx, log, ev, services.WelcomeText(user.DisplayName))
	return outcomeHandled, nil
}

// profile returns the cached LINE profile of uid. Lookup failures yield an
// empty profile.
func (d *Dispatcher) profile(ctx context.Context, log zerolog.Logger, uid string) line.Profile {
	key := cache.KeyFromStrings("profile", uid)
	if v, ok := d.cache.Get(key); ok {
		if p, ok := v.(line.Profile); ok {
			return p
		}
	}
	p, err := d.line.GetProfile(ctx, uid)
	if err != nil {
		log.Warn().Err(err).Msg("failed to fetch LINE profile")
		return line.Profile{}
	}
	d.cache.Set(key, *p, d.profileTTL)
	return *p
}

// reply sends text with the event's reply token. Delivery failures are only
// logged.
func (d *Dispatcher) reply(ctx context.Context, log zerolog.Logger, ev *line.Event, text string) {
	if ev.ReplyToken == "" {
		log.Debug().Msg("no reply token, not replying")
		return
	}
	if err := d.line.Reply(ctx, ev.ReplyToken, text); err != nil {
		metrics.RepliesTotal.WithLabelValues("error").Inc()
		log.Error().Err(err).Msg("failed to send reply")
		return
	}
	metrics.RepliesTotal.WithLabelValues("ok").Inc()
}

func (d *Dispatcher) publish(u *models.User, m *models.Message) {
	d.feed.Publish(feed.Event{
		ConversationID: m.ConversationID,
		MessageID:      m.ID,
		LineUserID:     u.LineUserID,
		DisplayName:    u.DisplayName,
		Role:           m.Role,
		Content:        m.Content,
		Timestamp:      m.Timestamp,
	})
}

// FallbackFor maps a handler error to the text shown to the user.
func FallbackFor(err error) string {
	var ge *services.GenerationError
	if errors.As(err, &ge) {
		return ge.FallbackText()
	}
	return services.GenericFallback
}
