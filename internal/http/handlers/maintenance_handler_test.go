package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/tbourn/go-chat-relay/internal/http/middleware"
)

func TestPurgeMessages_NoToken(t *testing.T) {
	store := &fakeStore{purged: 5}
	r := newTestRouter(New(store, &fakeViews{}, &fakeSender{}))

	w := do(r, http.MethodDelete, "/messages", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var resp PurgeResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json: %v", err)
	}
	if !resp.Success || resp.Deleted != 5 || resp.Message != "All messages have been deleted successfully." {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestPurgeMessages_TokenGuard(t *testing.T) {
	store := &fakeStore{}
	h := New(store, &fakeViews{}, &fakeSender{})
	h.MaintenanceToken = "s3cret"
	r := newTestRouter(h)

	for _, tok := range []string{"", "wrong", "s3cret2"} {
		w := do(r, http.MethodDelete, "/messages", "", map[string]string{middleware.HeaderMaintenanceToken: tok})
		if w.Code != http.StatusForbidden {
			t.Fatalf("token %q: status=%d", tok, w.Code)
		}
	}
	if store.purges != 0 {
		t.Fatalf("purge ran without a valid token")
	}

	w := do(r, http.MethodDelete, "/messages", "", map[string]string{middleware.HeaderMaintenanceToken: "s3cret"})
	if w.Code != http.StatusOK || store.purges != 1 {
		t.Fatalf("valid token: status=%d purges=%d", w.Code, store.purges)
	}
}

func TestPurgeMessages_Failure(t *testing.T) {
	r := newTestRouter(New(&fakeStore{purgeErr: errors.New("locked")}, &fakeViews{}, &fakeSender{}))
	w := do(r, http.MethodDelete, "/messages", "", nil)
	if w.Code != http.StatusInternalServerError || decodeErr(t, w).Code != ErrCodePurgeFailed {
		t.Fatalf("unexpected: %d %s", w.Code, w.Body.String())
	}
}
