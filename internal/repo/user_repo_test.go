package repo

import (
	"context"
	"testing"
	"time"

	"github.com/tbourn/go-chat-relay/internal/domain"
)

func TestUserRepo_UpsertAndGet(t *testing.T) {
	db := newTestDB(t, &domain.User{})
	ctx := context.Background()

	for _, u := range []domain.User{
		{ID: 1, Name: "Ann", UserType: domain.RoleUser},
		{ID: 2, Name: "Bob", UserType: domain.RoleAdmin},
		{ID: 3, Name: "Cid", UserType: domain.RoleAdmin},
	} {
		u := u
		if err := UpsertUser(ctx, db, &u); err != nil {
			t.Fatalf("UpsertUser(%d): %v", u.ID, err)
		}
	}

	// Upsert overwrites profile columns.
	if err := UpsertUser(ctx, db, &domain.User{ID: 1, Name: "Anna", ProfilePicture: "/p/1.png", UserType: domain.RoleUser}); err != nil {
		t.Fatalf("UpsertUser overwrite: %v", err)
	}
	u, err := GetUser(ctx, db, 1)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if u.Name != "Anna" || u.ProfilePicture != "/p/1.png" {
		t.Fatalf("upsert did not overwrite: %+v", u)
	}

	if _, err := GetUser(ctx, db, 404); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	byID, err := GetUsersByIDs(ctx, db, []uint{1, 3, 99})
	if err != nil {
		t.Fatalf("GetUsersByIDs: %v", err)
	}
	if len(byID) != 2 || byID[3].Name != "Cid" {
		t.Fatalf("unexpected users: %+v", byID)
	}
	if empty, err := GetUsersByIDs(ctx, db, nil); err != nil || len(empty) != 0 {
		t.Fatalf("empty ids: %v %v", empty, err)
	}
}

func TestUserRepo_OnlineOffline(t *testing.T) {
	db := newTestDB(t, &domain.User{})
	ctx := context.Background()
	if err := UpsertUser(ctx, db, &domain.User{ID: 5, Name: "Eve", UserType: domain.RoleUser}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := SetOnline(ctx, db, 5); err != nil {
		t.Fatalf("SetOnline: %v", err)
	}
	u, _ := GetUser(ctx, db, 5)
	if !u.IsOnline {
		t.Fatalf("expected online")
	}

	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	if err := SetOffline(ctx, db, 5, at); err != nil {
		t.Fatalf("SetOffline: %v", err)
	}
	u, _ = GetUser(ctx, db, 5)
	if u.IsOnline || u.LastSeenTime == nil || !u.LastSeenTime.Equal(at) {
		t.Fatalf("unexpected after offline: %+v", u)
	}

	// unknown ids are a no-op
	if err := SetOnline(ctx, db, 999); err != nil {
		t.Fatalf("SetOnline unknown: %v", err)
	}
}
