package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/peerspark/peerspark-backend/internal/domain/convo"
	"github.com/peerspark/peerspark-backend/internal/pkg/dbctx"
	"github.com/peerspark/peerspark-backend/internal/pkg/errs"
)

type memConversationRepo struct {
	rows map[uuid.UUID]*convo.Conversation
}

func newMemConversationRepo() *memConversationRepo {
	return &memConversationRepo{rows: map[uuid.UUID]*convo.Conversation{}}
}

func (r *memConversationRepo) Create(_ dbctx.Context, row *convo.Conversation) (*convo.Conversation, error) {
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	r.rows[row.ID] = row
	return row, nil
}

func (r *memConversationRepo) GetByID(_ dbctx.Context, id uuid.UUID) (*convo.Conversation, error) {
	row, ok := r.rows[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return row, nil
}

func (r *memConversationRepo) ListByOwner(_ dbctx.Context, ownerID uuid.UUID, limit int) ([]*convo.Conversation, error) {
	var out []*convo.Conversation
	for _, row := range r.rows {
		if row.OwnerID == ownerID {
			out = append(out, row)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memConversationRepo) AllocateSeq(_ dbctx.Context, id uuid.UUID, n int64) (int64, error) {
	row, ok := r.rows[id]
	if !ok {
		return 0, gorm.ErrRecordNotFound
	}
	row.NextSeq += n
	return row.NextSeq - n + 1, nil
}

func (r *memConversationRepo) UpdateFields(_ dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	row, ok := r.rows[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if v, ok := updates["last_message_at"].(time.Time); ok {
		row.LastMessageAt = v
	}
	if v, ok := updates["title"].(string); ok {
		row.Title = v
	}
	return nil
}

func (r *memConversationRepo) Delete(_ dbctx.Context, id uuid.UUID) error {
	delete(r.rows, id)
	return nil
}

type memMessageRepo struct {
	rows []*convo.Message
}

func (r *memMessageRepo) Create(_ dbctx.Context, rows []*convo.Message) ([]*convo.Message, error) {
	r.rows = append(r.rows, rows...)
	return rows, nil
}

func (r *memMessageRepo) byConversation(conversationID uuid.UUID) []*convo.Message {
	var out []*convo.Message
	for _, m := range r.rows {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

func (r *memMessageRepo) ListByConversation(_ dbctx.Context, conversationID uuid.UUID, limit int) ([]*convo.Message, error) {
	out := r.byConversation(conversationID)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memMessageRepo) ListRecent(_ dbctx.Context, conversationID uuid.UUID, limit int) ([]*convo.Message, error) {
	out := r.byConversation(conversationID)
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (r *memMessageRepo) GetMaxSeq(_ dbctx.Context, conversationID uuid.UUID) (int64, error) {
	out := r.byConversation(conversationID)
	if len(out) == 0 {
		return 0, nil
	}
	return out[len(out)-1].Seq, nil
}

func newConversationHarness(t *testing.T) (ConversationService, *memConversationRepo, *memMessageRepo) {
	t.Helper()
	convs := newMemConversationRepo()
	msgs := &memMessageRepo{}
	return NewConversationService(convs, msgs, testLogger(t)), convs, msgs
}

func TestAppendMessagesOrderedAcrossBackToBackBatches(t *testing.T) {
	svc, _, _ := newConversationHarness(t)
	dbc := dbctx.Context{Ctx: context.Background()}
	owner := uuid.New()

	conv, err := svc.Create(dbc, owner, "ordering")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// A turn whose tools fail instantly: a spread-out first batch followed by
	// a second batch landing well inside the first batch's timestamp spread.
	batch1, err := svc.AppendMessages(dbc, conv.ID, owner, []*convo.Message{
		{Role: convo.RoleUser, Content: "what changed?"},
		{Role: convo.RoleToolCall, Content: ""},
		{Role: convo.RoleToolCall, Content: ""},
	})
	if err != nil {
		t.Fatalf("AppendMessages batch1: %v", err)
	}
	batch2, err := svc.AppendMessages(dbc, conv.ID, owner, []*convo.Message{
		{Role: convo.RoleToolOutput, Content: ""},
	})
	if err != nil {
		t.Fatalf("AppendMessages batch2: %v", err)
	}

	all := append(batch1, batch2...)
	for i, m := range all {
		if m.Seq != int64(i)+1 {
			t.Fatalf("msg[%d] seq = %d, want %d", i, m.Seq, i+1)
		}
		if i == 0 {
			continue
		}
		if !m.SentAt.After(all[i-1].SentAt) {
			t.Fatalf("sent_at not strictly increasing: msg[%d] seq=%d sent_at=%v then msg[%d] seq=%d sent_at=%v",
				i-1, all[i-1].Seq, all[i-1].SentAt, i, m.Seq, m.SentAt)
		}
	}
}

func TestAppendMessagesUnknownConversation(t *testing.T) {
	svc, _, _ := newConversationHarness(t)
	dbc := dbctx.Context{Ctx: context.Background()}

	_, err := svc.AppendMessages(dbc, uuid.New(), uuid.New(), []*convo.Message{
		{Role: convo.RoleUser, Content: "hello"},
	})
	if !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestHistoryReturnsNewestWindow(t *testing.T) {
	svc, _, _ := newConversationHarness(t)
	dbc := dbctx.Context{Ctx: context.Background()}
	owner := uuid.New()

	conv, err := svc.Create(dbc, owner, "long running")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	for i := 0; i < 25; i++ {
		if _, err := svc.AppendMessages(dbc, conv.ID, owner, []*convo.Message{
			{Role: convo.RoleUser, Content: fmt.Sprintf("turn %d", i+1)},
		}); err != nil {
			t.Fatalf("AppendMessages %d: %v", i, err)
		}
	}

	got, err := svc.History(dbc, owner, conv.ID, 20)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(got) != 20 {
		t.Fatalf("History returned %d messages, want 20", len(got))
	}
	if got[0].Seq != 6 || got[len(got)-1].Seq != 25 {
		t.Fatalf("History window = seq %d..%d, want 6..25", got[0].Seq, got[len(got)-1].Seq)
	}
	for i := 1; i < len(got); i++ {
		if got[i].Seq != got[i-1].Seq+1 {
			t.Fatalf("History not in ascending seq order at index %d", i)
		}
	}
}
