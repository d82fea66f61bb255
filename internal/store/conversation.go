package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"iara/pkg/models"
)

const (
	keySession = "session:" // session:<phone> -> list of ChatEntry JSON
	keySeen    = "seen"     // set of processed message ids
	keyMenu    = "menu:"    // menu:<phone> -> marker, TTL-bound
	keyRateS   = "rate:s:"  // short-window per-phone counter
	keyRateL   = "rate:l:"  // long-window per-phone counter
)

// menuTTL bounds how long a numbered menu stays selectable after being shown.
const menuTTL = 30 * time.Minute

// SessionStore keeps the rolling message history per phone. The full history
// stays in the store; only a trailing window is handed to the LLM.
type SessionStore struct {
	kv KV
}

func NewSessionStore(kv KV) *SessionStore {
	return &SessionStore{kv: kv}
}

// Append adds one entry to a phone's history.
func (s *SessionStore) Append(ctx context.Context, phone, role, content string) error {
	data, err := json.Marshal(models.ChatEntry{Role: role, Content: content})
	if err != nil {
		return fmt.Errorf("encode chat entry: %w", err)
	}
	return s.kv.ListAppend(ctx, keySession+phone, string(data))
}

// Window returns the most recent n entries, oldest first. Undecodable entries
// are skipped rather than failing the whole window.
func (s *SessionStore) Window(ctx context.Context, phone string, n int) ([]models.ChatEntry, error) {
	raw, err := s.kv.ListRange(ctx, keySession+phone, int64(-n), -1)
	if err != nil {
		return nil, err
	}
	out := make([]models.ChatEntry, 0, len(raw))
	for _, r := range raw {
		var e models.ChatEntry
		if json.Unmarshal([]byte(r), &e) == nil {
			out = append(out, e)
		}
	}
	return out, nil
}

// Empty reports whether the phone has no history yet.
func (s *SessionStore) Empty(ctx context.Context, phone string) bool {
	entries, err := s.kv.ListRange(ctx, keySession+phone, 0, 0)
	return err == nil && len(entries) == 0
}

// SeenStore is the append-only deduplication set of message identifiers.
type SeenStore struct {
	kv KV
}

func NewSeenStore(kv KV) *SeenStore {
	return &SeenStore{kv: kv}
}

// MarkSeen records id and reports whether it was new. Marking happens before
// any reply is sent (at-most-once delivery; see the router).
func (s *SeenStore) MarkSeen(ctx context.Context, id string) (bool, error) {
	return s.kv.SetAdd(ctx, keySeen, id)
}

// MenuStore remembers that a numbered product menu was shown to a phone, so a
// bare "2" in the next message can be read as a menu selection.
type MenuStore struct {
	kv KV
}

func NewMenuStore(kv KV) *MenuStore {
	return &MenuStore{kv: kv}
}

func (s *MenuStore) MarkShown(ctx context.Context, phone string) error {
	return s.kv.Set(ctx, keyMenu+phone, "1", menuTTL)
}

func (s *MenuStore) Shown(ctx context.Context, phone string) bool {
	_, ok, err := s.kv.Get(ctx, keyMenu+phone)
	return err == nil && ok
}

// RateLimiter holds per-phone message counters over a short and a long
// window. Zero limits disable the check entirely.
type RateLimiter struct {
	kv         KV
	shortLimit int
	longLimit  int
}

const (
	rateShortWindow = 10 * time.Second
	rateLongWindow  = 10 * time.Minute
)

func NewRateLimiter(kv KV, shortLimit, longLimit int) *RateLimiter {
	return &RateLimiter{kv: kv, shortLimit: shortLimit, longLimit: longLimit}
}

// Allow counts one message for phone. notify is true only on the first
// over-limit message per window so the "please wait" notice is sent once.
// Store failures fail open: a broken limiter must not silence customers.
func (r *RateLimiter) Allow(ctx context.Context, phone string) (allowed, notify bool) {
	if r == nil || (r.shortLimit <= 0 && r.longLimit <= 0) {
		return true, false
	}
	short, err := r.kv.Incr(ctx, keyRateS+phone, rateShortWindow)
	if err != nil {
		return true, false
	}
	long, err := r.kv.Incr(ctx, keyRateL+phone, rateLongWindow)
	if err != nil {
		return true, false
	}
	if r.shortLimit > 0 && short > int64(r.shortLimit) {
		return false, short == int64(r.shortLimit)+1
	}
	if r.longLimit > 0 && long > int64(r.longLimit) {
		return false, long == int64(r.longLimit)+1
	}
	return true, false
}
