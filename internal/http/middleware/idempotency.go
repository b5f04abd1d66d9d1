// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file validates the Idempotency-Key header on POST /messages. When a
// lookup is supplied, the sender and receiver are peeked from the JSON body so
// a stored replay can be detected before the handler runs. Replays are marked
// in the context and skip the rate limiter.
package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey carries the client-chosen key for a send.
const HeaderIdempotencyKey = "Idempotency-Key"

const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemReplay = "idem.replay"
	ctxKeyRateBypass = "rate.bypass"
)

var defaultKeyPattern = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)

// GetIdempotencyKey returns the validated key stashed by IdempotencyValidator.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	s := c.GetString(ctxKeyIdemKey)
	return s, s != ""
}

// IsReplay reports whether a stored result already exists for this key.
func IsReplay(c *gin.Context) bool { return c.GetBool(ctxKeyIdemReplay) }

// IdempotencyOptions configures header validation.
type IdempotencyOptions struct {
	// MaxLen caps the key length. Values <= 0 default to 200.
	MaxLen int
	// Pattern restricts the key alphabet; nil selects ^[A-Za-z0-9._~\-:]+$.
	Pattern *regexp.Regexp
}

// IdempotencyLookup reports whether an unexpired record exists for
// (senderID, receiverID, key) at now. Errors are treated as "no record".
type IdempotencyLookup func(ctx context.Context, senderID, receiverID uint, key string, now time.Time) (bool, error)

// sendTarget is the part of a send body that scopes an idempotency key.
type sendTarget struct {
	SenderID   uint `json:"sender_id"`
	ReceiverID uint `json:"receiver_id"`
}

// IdempotencyValidator rejects malformed Idempotency-Key headers with 400 and
// stashes valid ones. Requests without the header pass through untouched.
func IdempotencyValidator(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = 200
	}
	pat := opts.Pattern
	if pat == nil {
		pat = defaultKeyPattern
	}

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"success":    false,
				"request_id": c.Writer.Header().Get(requestIDHeader),
				"code":       "bad_idempotency_key",
				"message":    "invalid Idempotency-Key",
			})
			return
		}
		c.Set(ctxKeyIdemKey, key)

		if lookup != nil && c.Request.Method == http.MethodPost {
			t, ok, err := peekTarget(c.Request)
			if err != nil {
				status, code, msg := http.StatusBadRequest, "bad_request", "unreadable request body"
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					status, code, msg = http.StatusRequestEntityTooLarge, "payload_too_large", "request body too large"
				}
				c.AbortWithStatusJSON(status, gin.H{
					"success":    false,
					"request_id": c.Writer.Header().Get(requestIDHeader),
					"code":       code,
					"message":    msg,
				})
				return
			}
			if ok {
				if exists, _ := lookup(c.Request.Context(), t.SenderID, t.ReceiverID, key, time.Now().UTC()); exists {
					c.Set(ctxKeyIdemReplay, true)
					c.Set(ctxKeyRateBypass, true)
				}
			}
		}
		c.Next()
	}
}

// peekTarget decodes sender and receiver from the request body and restores
// the body for the handler. Read failures are returned; undecodable bodies
// are left for the handler to reject.
func peekTarget(r *http.Request) (sendTarget, bool, error) {
	var t sendTarget
	if r.Body == nil {
		return t, false, nil
	}
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return t, false, err
	}
	r.Body = io.NopCloser(bytes.NewReader(raw))
	if len(raw) == 0 {
		return t, false, nil
	}
	if err := json.Unmarshal(raw, &t); err != nil {
		return t, false, nil
	}
	return t, t.SenderID != 0 && t.ReceiverID != 0, nil
}
