// Package store owns every write to users, conversations and messages.
package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"LineRelay/models"
)

var (
	ErrNotFound       = errors.New("record not found")
	ErrInvalidRole    = errors.New("invalid message role")
	ErrMissingUserID  = errors.New("external user id is required")
	ErrNoConversation = errors.New("conversation id is required")
)

// Profile is optional user data reported by the platform. Empty fields mean
// unknown and never overwrite stored values.
type Profile struct {
	DisplayName string
	PictureURL  string
}

// Store is the durable conversation store. It is safe for concurrent use.
type Store struct {
	db       *gorm.DB
	log      zerolog.Logger
	platform string
	bumps    sync.WaitGroup
}

func New(db *gorm.DB, log zerolog.Logger) *Store {
	return &Store{
		db:       db,
		log:      log.With().Str("component", "store").Logger(),
		platform: models.PlatformLine,
	}
}

// GetOrCreateUser returns the user for externalID, creating it on first
// contact and refreshing the profile fields when they changed.
func (s *Store) GetOrCreateUser(ctx context.Context, externalID string, p Profile) (*models.User, error) {
	if externalID == "" {
		return nil, ErrMissingUserID
	}
	db := s.db.WithContext(ctx)

	var u models.User
	err := db.Where("line_user_id = ?", externalID).Take(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		u = models.User{LineUserID: externalID, DisplayName: p.DisplayName, PictureURL: p.PictureURL}
		cerr := db.Create(&u).Error
		if cerr == nil {
			return &u, nil
		}
		// lost a create race on the unique index: read the winner
		if err = db.Where("line_user_id = ?", externalID).Take(&u).Error; err != nil {
			return nil, fmt.Errorf("create user: %w", cerr)
		}
	} else if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}

	updates := map[string]any{}
	if p.DisplayName != "" && p.DisplayName != u.DisplayName {
		updates["display_name"] = p.DisplayName
	}
	if p.PictureURL != "" && p.PictureURL != u.PictureURL {
		updates["picture_url"] = p.PictureURL
	}
	if len(updates) > 0 {
		if err := db.Model(&models.User{}).Where("id = ?", u.ID).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("update user profile: %w", err)
		}
		if v, ok := updates["display_name"].(string); ok {
			u.DisplayName = v
		}
		if v, ok := updates["picture_url"].(string); ok {
			u.PictureURL = v
		}
	}
	return &u, nil
}

// GetOrCreateConversation returns the most recently updated conversation of
// the user on this platform, creating one if none exists.
func (s *Store) GetOrCreateConversation(ctx context.Context, userID uint, externalID string) (*models.Conversation, error) {
	db := s.db.WithContext(ctx)

	var conv models.Conversation
	err := db.Where("user_id = ? AND external_user_id = ? AND platform = ?", userID, externalID, s.platform).
		Order(clause.OrderBy{Columns: []clause.OrderByColumn{
			{Column: clause.Column{Name: "updated_at"}, Desc: true},
			{Column: clause.Column{Name: "id"}, Desc: true},
		}}).
		Take(&conv).Error
	if err == nil {
		return &conv, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("find conversation: %w", err)
	}

	conv = models.Conversation{UserID: userID, Platform: s.platform, ExternalUserID: externalID}
	if err := db.Omit(clause.Associations).Create(&conv).Error; err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return &conv, nil
}

// GetConversationHistory returns up to limit of the newest messages, ordered
// oldest to newest.
func (s *Store) GetConversationHistory(ctx context.Context, conversationID uint, limit int) ([]models.Message, error) {
	if limit <= 0 {
		return []models.Message{}, nil
	}
	var msgs []models.Message
	err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order(clause.OrderBy{Columns: []clause.OrderByColumn{
			{Column: clause.Column{Name: "timestamp"}, Desc: true},
			{Column: clause.Column{Name: "id"}, Desc: true},
		}}).
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	slices.Reverse(msgs)
	return msgs, nil
}

// SaveMessage appends one turn. It is not idempotent: retrying after an
// ambiguous failure can store the turn twice.
//
// The conversation's updated_at is bumped in the background; a failed bump
// is logged and never fails the save.
func (s *Store) SaveMessage(ctx context.Context, conversationID uint, role, content string, metadata map[string]any) (*models.Message, error) {
	if conversationID == 0 {
		return nil, ErrNoConversation
	}
	if !models.ValidRole(role) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	m := models.Message{
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		Timestamp:      time.Now(),
	}
	if len(metadata) > 0 {
		m.Metadata = datatypes.JSONMap(metadata)
	}
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return nil, fmt.Errorf("save message: %w", err)
	}
	s.touchConversation(ctx, conversationID, m.Timestamp)
	return &m, nil
}

func (s *Store) touchConversation(ctx context.Context, conversationID uint, at time.Time) {
	bctx := context.WithoutCancel(ctx)
	s.bumps.Add(1)
	go func() {
		defer s.bumps.Done()
		defer func() {
			if r := recover(); r != nil {
				s.log.Error().Interface("panic", r).Uint("conversation_id", conversationID).Msg("conversation bump panicked")
			}
		}()
		// never move updated_at backwards when bumps finish out of order
		err := s.db.WithContext(bctx).Model(&models.Conversation{}).
			Where("id = ? AND updated_at < ?", conversationID, at).
			UpdateColumn("updated_at", at).Error
		if err != nil {
			s.log.Warn().Err(err).Uint("conversation_id", conversationID).Msg("failed to bump conversation updated_at")
		}
	}()
}

// Wait blocks until all background bumps have finished.
func (s *Store) Wait() {
	s.bumps.Wait()
}

// ConversationSummary is a conversation row for the admin console.
type ConversationSummary struct {
	models.Conversation
	MessagesCount int64
}

// '!' instead of a backslash: sqlite and mysql read '\\' differently.
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// ListConversations returns conversations newest first. q filters by display
// name or LINE user id, case-insensitively and literally.
func (s *Store) ListConversations(ctx context.Context, q string) ([]ConversationSummary, error) {
	db := s.db.WithContext(ctx).
		Model(&models.Conversation{}).
		Preload("User").
		Joins("JOIN users ON users.id = conversations.user_id")
	if q = strings.TrimSpace(q); q != "" {
		p := "%" + likeEscaper.Replace(strings.ToLower(q)) + "%"
		db = db.Where("LOWER(users.display_name) LIKE ? ESCAPE '!' OR LOWER(conversations.external_user_id) LIKE ? ESCAPE '!'", p, p)
	}

	var convs []models.Conversation
	if err := db.Order("conversations.updated_at DESC").Order("conversations.id DESC").Find(&convs).Error; err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	if len(convs) == 0 {
		return []ConversationSummary{}, nil
	}

	ids := make([]uint, 0, len(convs))
	for _, c := range convs {
		ids = append(ids, c.ID)
	}
	var counts []struct {
		ConversationID uint
		N              int64
	}
	err := s.db.WithContext(ctx).Model(&models.Message{}).
		Select("conversation_id, COUNT(*) AS n").
		Where("conversation_id IN ?", ids).
		Group("conversation_id").
		Scan(&counts).Error
	if err != nil {
		return nil, fmt.Errorf("count messages: %w", err)
	}
	byID := make(map[uint]int64, len(counts))
	for _, c := range counts {
		byID[c.ConversationID] = c.N
	}

	out := make([]ConversationSummary, 0, len(convs))
	for _, c := range convs {
		out = append(out, ConversationSummary{Conversation: c, MessagesCount: byID[c.ID]})
	}
	return out, nil
}

// GetConversation loads one conversation with its user and all messages in
// chronological order.
func (s *Store) GetConversation(ctx context.Context, id uint) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.db.WithContext(ctx).
		Preload("User").
		Preload("Messages", func(db *gorm.DB) *gorm.DB {
			return db.Order(clause.OrderBy{Columns: []clause.OrderByColumn{
				{Column: clause.Column{Name: "timestamp"}},
				{Column: clause.Column{Name: "id"}},
			}})
		}).
		Take(&conv, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return &conv, nil
}

// ListUsers returns all known users, most recently active first.
func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := s.db.WithContext(ctx).Order("updated_at DESC").Order("id DESC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// CountMessages returns the number of messages stored for a conversation.
func (s *Store) CountMessages(ctx context.Context, conversationID uint) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Message{}).Where("conversation_id = ?", conversationID).Count(&n).Error
	return n, err
}
