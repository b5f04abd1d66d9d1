package repo

import (
	"context"
	"testing"

	"gorm.io/gorm"

	"github.com/tbourn/go-chat-relay/internal/domain"
)

func text(s string) *string { return &s }

func send(t *testing.T, db *gorm.DB, from, to uint, body string) *domain.Message {
	t.Helper()
	m, err := CreateMessage(context.Background(), db, domain.NewMessage{SenderID: from, ReceiverID: to, Body: text(body)}, false)
	if err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}
	return m
}

func TestCreateMessage_AssignsIncreasingIDs(t *testing.T) {
	db := newTestDB(t, &domain.Message{})

	a, err := CreateMessage(context.Background(), db, domain.NewMessage{SenderID: 1, ReceiverID: 2, Body: text("hello")}, true)
	if err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}
	b := send(t, db, 2, 1, "hi")

	if a.ID == 0 || b.ID <= a.ID {
		t.Fatalf("ids not increasing: %d %d", a.ID, b.ID)
	}
	if !a.IsDelivered || a.IsRead || a.IsAdminRead {
		t.Fatalf("unexpected flags on a: %+v", a)
	}
	if b.IsDelivered {
		t.Fatalf("b should be undelivered")
	}

	got, err := GetMessage(context.Background(), db, a.ID)
	if err != nil || got.Text() != "hello" || !got.IsDelivered {
		t.Fatalf("readback: %+v %v", got, err)
	}
	if _, err := GetMessage(context.Background(), db, 9999); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMarkDelivered_OnlyReceiverAndIdempotent(t *testing.T) {
	db := newTestDB(t, &domain.Message{})
	ctx := context.Background()
	send(t, db, 1, 2, "a")
	send(t, db, 3, 2, "b")
	send(t, db, 2, 1, "c")

	n, err := MarkDelivered(ctx, db, 2)
	if err != nil || n != 2 {
		t.Fatalf("first MarkDelivered: n=%d err=%v", n, err)
	}
	n, err = MarkDelivered(ctx, db, 2)
	if err != nil || n != 0 {
		t.Fatalf("second MarkDelivered should change nothing: n=%d err=%v", n, err)
	}

	var pending int64
	db.Model(&domain.Message{}).Where("is_delivered = ?", false).Count(&pending)
	if pending != 1 {
		t.Fatalf("expected the message to user 1 still undelivered, got %d", pending)
	}
}

func TestMarkRead_Directional(t *testing.T) {
	db := newTestDB(t, &domain.Message{})
	ctx := context.Background()
	send(t, db, 1, 2, "a")
	send(t, db, 1, 2, "b")
	send(t, db, 2, 1, "c")

	n, err := MarkRead(ctx, db, 1, 2)
	if err != nil || n != 2 {
		t.Fatalf("MarkRead: n=%d err=%v", n, err)
	}
	n, _ = MarkRead(ctx, db, 1, 2)
	if n != 0 {
		t.Fatalf("MarkRead must be idempotent, changed %d", n)
	}

	unread, err := UnreadBySender(ctx, db, 1)
	if err != nil {
		t.Fatalf("UnreadBySender: %v", err)
	}
	if unread[2] != 1 {
		t.Fatalf("expected 1 unread from 2 to 1, got %v", unread)
	}
	unread2, _ := UnreadBySender(ctx, db, 2)
	if len(unread2) != 0 {
		t.Fatalf("expected nothing unread for 2, got %v", unread2)
	}
}

func TestMarkAdminRead_BothDirections(t *testing.T) {
	db := newTestDB(t, &domain.Message{})
	ctx := context.Background()
	send(t, db, 3, 7, "a")
	send(t, db, 7, 3, "b")
	send(t, db, 3, 8, "c")

	counts, err := AdminUnreadByPair(ctx, db)
	if err != nil {
		t.Fatalf("AdminUnreadByPair: %v", err)
	}
	if counts[domain.NewPairKey(3, 7)] != 2 || counts[domain.NewPairKey(3, 8)] != 1 {
		t.Fatalf("unexpected admin unread: %v", counts)
	}

	n, err := MarkAdminRead(ctx, db, 7, 3)
	if err != nil || n != 2 {
		t.Fatalf("MarkAdminRead: n=%d err=%v", n, err)
	}
	counts, _ = AdminUnreadByPair(ctx, db)
	if _, ok := counts[domain.NewPairKey(3, 7)]; ok {
		t.Fatalf("pair (3,7) should have no admin-unread messages: %v", counts)
	}
	if counts[domain.NewPairKey(3, 8)] != 1 {
		t.Fatalf("other pair must be untouched: %v", counts)
	}
}

func TestListPairBefore_NewestFirstAndCursor(t *testing.T) {
	db := newTestDB(t, &domain.Message{})
	ctx := context.Background()
	var ids []uint
	for i := 0; i < 5; i++ {
		from, to := uint(1), uint(2)
		if i%2 == 1 {
			from, to = 2, 1
		}
		ids = append(ids, send(t, db, from, to, "m").ID)
	}
	send(t, db, 1, 3, "other pair")

	latest, err := ListPairBefore(ctx, db, 1, 2, 0, 3)
	if err != nil {
		t.Fatalf("ListPairBefore: %v", err)
	}
	if len(latest) != 3 || latest[0].ID != ids[4] || latest[2].ID != ids[2] {
		t.Fatalf("unexpected latest page: %+v", latest)
	}

	older, err := ListPairBefore(ctx, db, 2, 1, ids[2], 10)
	if err != nil {
		t.Fatalf("ListPairBefore cursor: %v", err)
	}
	if len(older) != 2 || older[0].ID != ids[1] || older[1].ID != ids[0] {
		t.Fatalf("unexpected older page: %+v", older)
	}
}

func TestListPairPage_AndCount(t *testing.T) {
	db := newTestDB(t, &domain.Message{})
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		send(t, db, 1, 2, "m")
	}
	send(t, db, 4, 5, "x")

	total, err := CountPair(ctx, db, 2, 1)
	if err != nil || total != 5 {
		t.Fatalf("CountPair: total=%d err=%v", total, err)
	}
	page2, err := ListPairPage(ctx, db, 1, 2, 2, 2)
	if err != nil {
		t.Fatalf("ListPairPage: %v", err)
	}
	if len(page2) != 2 || page2[0].ID <= page2[1].ID {
		t.Fatalf("page must be newest first: %+v", page2)
	}
}

func TestPairHasMessage(t *testing.T) {
	db := newTestDB(t, &domain.Message{})
	ctx := context.Background()
	in := send(t, db, 1, 2, "a")
	out := send(t, db, 1, 3, "b")

	if ok, err := PairHasMessage(ctx, db, 2, 1, in.ID); err != nil || !ok {
		t.Fatalf("expected message in pair: ok=%v err=%v", ok, err)
	}
	if ok, _ := PairHasMessage(ctx, db, 1, 2, out.ID); ok {
		t.Fatalf("message from another pair must not match")
	}
}

func TestConversationHeads_FoldsDirections(t *testing.T) {
	db := newTestDB(t, &domain.Message{})
	ctx := context.Background()
	send(t, db, 3, 7, "a")
	last := send(t, db, 7, 3, "b")
	other := send(t, db, 3, 9, "c")
	unrelated := send(t, db, 4, 5, "d")

	heads, err := ConversationHeads(ctx, db, 3)
	if err != nil {
		t.Fatalf("ConversationHeads: %v", err)
	}
	got := map[domain.PairKey]uint{}
	for _, h := range heads {
		got[h.Pair] = h.LastID
	}
	if len(got) != 2 || got[domain.NewPairKey(3, 7)] != last.ID || got[domain.NewPairKey(3, 9)] != other.ID {
		t.Fatalf("unexpected heads for user 3: %v", got)
	}

	all, err := ConversationHeads(ctx, db, 0)
	if err != nil {
		t.Fatalf("ConversationHeads all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 conversations, got %d", len(all))
	}

	byID, err := GetMessagesByIDs(ctx, db, []uint{last.ID, unrelated.ID})
	if err != nil || len(byID) != 2 || byID[last.ID].Text() != "b" {
		t.Fatalf("GetMessagesByIDs: %v %v", byID, err)
	}
}

func TestPurgeAll_RemovesMessagesAndIdempotency(t *testing.T) {
	db := newTestDB(t, &domain.Message{}, &domain.Idempotency{})
	ctx := context.Background()
	m := send(t, db, 1, 2, "a")
	send(t, db, 2, 1, "b")
	if _, err := CreateIdempotency(ctx, db, 1, 2, "k", m.ID, 201, 0); err != nil {
		t.Fatalf("seed idem: %v", err)
	}

	n, err := PurgeAll(ctx, db)
	if err != nil || n != 2 {
		t.Fatalf("PurgeAll: n=%d err=%v", n, err)
	}
	var left int64
	db.Model(&domain.Idempotency{}).Count(&left)
	if left != 0 {
		t.Fatalf("idempotency rows left: %d", left)
	}
	n, err = PurgeAll(ctx, db)
	if err != nil || n != 0 {
		t.Fatalf("second PurgeAll: n=%d err=%v", n, err)
	}
}
