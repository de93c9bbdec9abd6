package convo

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/peerspark/peerspark-backend/internal/data/repos/testutil"
	types "github.com/peerspark/peerspark-backend/internal/domain/convo"
	"github.com/peerspark/peerspark-backend/internal/pkg/dbctx"
)

func TestConversationAllocateSeq(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}

	repo := NewConversationRepo(db, log)

	conv, err := repo.Create(dbc, &types.Conversation{OwnerID: uuid.New()})
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}

	first, err := repo.AllocateSeq(dbc, conv.ID, 3)
	if err != nil {
		t.Fatalf("allocate seq: %v", err)
	}
	if first != 1 {
		t.Fatalf("first allocation: want=1 got=%d", first)
	}

	second, err := repo.AllocateSeq(dbc, conv.ID, 2)
	if err != nil {
		t.Fatalf("allocate seq again: %v", err)
	}
	if second != 4 {
		t.Fatalf("second allocation: want=4 got=%d", second)
	}
}

func TestMessageOrdering(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}

	convRepo := NewConversationRepo(db, log)
	msgRepo := NewMessageRepo(db, log)

	owner := uuid.New()
	conv, err := convRepo.Create(dbc, &types.Conversation{OwnerID: owner})
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}

	first, err := convRepo.AllocateSeq(dbc, conv.ID, 2)
	if err != nil {
		t.Fatalf("allocate seq: %v", err)
	}

	now := time.Now().UTC()
	rows := []*types.Message{
		{ConversationID: conv.ID, OwnerID: owner, Seq: first, Role: types.RoleUser, Content: "hello", SentAt: now},
		{ConversationID: conv.ID, OwnerID: owner, Seq: first + 1, Role: types.RoleAssistant, Content: "hi there", SentAt: now.Add(time.Millisecond)},
	}
	if _, err := msgRepo.Create(dbc, rows); err != nil {
		t.Fatalf("create messages: %v", err)
	}

	got, err := msgRepo.ListByConversation(dbc, conv.ID, 10)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("message count: want=2 got=%d", len(got))
	}
	if got[0].Role != types.RoleUser || got[1].Role != types.RoleAssistant {
		t.Fatalf("message order: got=%s,%s", got[0].Role, got[1].Role)
	}
	if got[0].Seq >= got[1].Seq {
		t.Fatalf("seq not increasing: %d then %d", got[0].Seq, got[1].Seq)
	}

	maxSeq, err := msgRepo.GetMaxSeq(dbc, conv.ID)
	if err != nil {
		t.Fatalf("max seq: %v", err)
	}
	if maxSeq != first+1 {
		t.Fatalf("max seq: want=%d got=%d", first+1, maxSeq)
	}
}
