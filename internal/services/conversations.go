package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/peerspark/peerspark-backend/internal/data/repos"
	"github.com/peerspark/peerspark-backend/internal/domain/convo"
	"github.com/peerspark/peerspark-backend/internal/pkg/dbctx"
	"github.com/peerspark/peerspark-backend/internal/pkg/errs"
	"github.com/peerspark/peerspark-backend/internal/platform/logger"
)

const (
	defaultHistoryLimit = 50
	maxDerivedTitle     = 60
)

// ConversationService owns the append-only message log. Messages are
// immutable once written; ordering comes from the per-conversation sequence
// counter, not wall-clock time.
type ConversationService interface {
	Create(dbc dbctx.Context, ownerID uuid.UUID, title string) (*convo.Conversation, error)

	// EnsureConversation loads the caller's conversation or creates one when
	// id is nil. Loading someone else's conversation is ErrNotFound.
	EnsureConversation(dbc dbctx.Context, ownerID uuid.UUID, id *uuid.UUID, fallbackTitle string) (*convo.Conversation, error)

	List(dbc dbctx.Context, ownerID uuid.UUID, limit int) ([]*convo.Conversation, error)
	History(dbc dbctx.Context, ownerID, conversationID uuid.UUID, limit int) ([]*convo.Message, error)

	// AppendMessages reserves a contiguous sequence range and writes the
	// messages in order. SentAt values are assigned strictly increasing.
	AppendMessages(dbc dbctx.Context, conversationID, ownerID uuid.UUID, msgs []*convo.Message) ([]*convo.Message, error)

	UpdateTitle(dbc dbctx.Context, ownerID, conversationID uuid.UUID, title string) error

	// Delete removes the conversation and cascades its messages atomically.
	Delete(dbc dbctx.Context, ownerID, conversationID uuid.UUID) error
}

type conversationService struct {
	log           *logger.Logger
	conversations repos.ConversationRepo
	messages      repos.MessageRepo
}

func NewConversationService(conversations repos.ConversationRepo, messages repos.MessageRepo, baseLog *logger.Logger) ConversationService {
	return &conversationService{
		log:           baseLog.With("service", "ConversationService"),
		conversations: conversations,
		messages:      messages,
	}
}

func (s *conversationService) Create(dbc dbctx.Context, ownerID uuid.UUID, title string) (*convo.Conversation, error) {
	if ownerID == uuid.Nil {
		return nil, fmt.Errorf("%w: owner required", errs.ErrInvalidArgument)
	}
	row := &convo.Conversation{OwnerID: ownerID}
	if t := strings.TrimSpace(title); t != "" {
		row.Title = t
	}
	return s.conversations.Create(dbc, row)
}

func (s *conversationService) EnsureConversation(dbc dbctx.Context, ownerID uuid.UUID, id *uuid.UUID, fallbackTitle string) (*convo.Conversation, error) {
	if id == nil || *id == uuid.Nil {
		return s.Create(dbc, ownerID, DeriveTitle(fallbackTitle))
	}
	return s.getOwned(dbc, ownerID, *id)
}

func (s *conversationService) List(dbc dbctx.Context, ownerID uuid.UUID, limit int) ([]*convo.Conversation, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return s.conversations.ListByOwner(dbc, ownerID, limit)
}

func (s *conversationService) History(dbc dbctx.Context, ownerID, conversationID uuid.UUID, limit int) ([]*convo.Message, error) {
	if _, err := s.getOwned(dbc, ownerID, conversationID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	// The window is the newest N messages, oldest first; a long conversation
	// must not pin the model to its opening turns.
	return s.messages.ListRecent(dbc, conversationID, limit)
}

func (s *conversationService) AppendMessages(dbc dbctx.Context, conversationID, ownerID uuid.UUID, msgs []*convo.Message) ([]*convo.Message, error) {
	if len(msgs) == 0 {
		return nil, nil
	}

	first, err := s.conversations.AllocateSeq(dbc, conversationID, int64(len(msgs)))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrNotFound
		}
		return nil, fmt.Errorf("allocate seq: %w", err)
	}

	prev, err := s.messages.ListRecent(dbc, conversationID, 1)
	if err != nil {
		return nil, fmt.Errorf("read last sent_at: %w", err)
	}
	base := time.Now().UTC()
	// Batches landing within the previous batch's spread must not step
	// backwards; clamp against the newest stored timestamp.
	if len(prev) > 0 {
		if floor := prev[0].SentAt.Add(time.Millisecond); base.Before(floor) {
			base = floor
		}
	}
	for i, m := range msgs {
		m.ConversationID = conversationID
		m.OwnerID = ownerID
		m.Seq = first + int64(i)
		// Sub-millisecond turns still need distinct, ordered timestamps.
		m.SentAt = base.Add(time.Duration(i) * time.Millisecond)
	}

	created, err := s.messages.Create(dbc, msgs)
	if err != nil {
		return nil, err
	}

	last := created[len(created)-1].SentAt
	if err := s.conversations.UpdateFields(dbc, conversationID, map[string]interface{}{"last_message_at": last}); err != nil {
		s.log.Warn("failed to bump last_message_at", "conversation_id", conversationID, "error", err)
	}
	return created, nil
}

func (s *conversationService) UpdateTitle(dbc dbctx.Context, ownerID, conversationID uuid.UUID, title string) error {
	if _, err := s.getOwned(dbc, ownerID, conversationID); err != nil {
		return err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("%w: empty title", errs.ErrInvalidArgument)
	}
	return s.conversations.UpdateFields(dbc, conversationID, map[string]interface{}{"title": title})
}

func (s *conversationService) Delete(dbc dbctx.Context, ownerID, conversationID uuid.UUID) error {
	if _, err := s.getOwned(dbc, ownerID, conversationID); err != nil {
		return err
	}
	return s.conversations.Delete(dbc, conversationID)
}

func (s *conversationService) getOwned(dbc dbctx.Context, ownerID, conversationID uuid.UUID) (*convo.Conversation, error) {
	row, err := s.conversations.GetByID(dbc, conversationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	// Not-found and not-yours look identical to the caller.
	if row.OwnerID != ownerID {
		return nil, errs.ErrNotFound
	}
	return row, nil
}

// DeriveTitle builds a conversation title from its first user message, the
// way implicitly created conversations are named.
func DeriveTitle(firstMessage string) string {
	t := strings.Join(strings.Fields(firstMessage), " ")
	if t == "" {
		return ""
	}
	runes := []rune(t)
	if len(runes) > maxDerivedTitle {
		t = strings.TrimSpace(string(runes[:maxDerivedTitle])) + "..."
	}
	return t
}
