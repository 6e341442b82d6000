// Package history keeps the rolling log of the most recent generations in a
// storage.KV under a single key.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"imagestudio/internal/catalog"
	"imagestudio/internal/infra"
	"imagestudio/internal/storage"
)

const (
	// MaxEntries bounds the log. Appending beyond it evicts the oldest entry.
	MaxEntries = 3

	DefaultKey = "imageGenerationHistory"
)

// Entry is one past generation. Field names match the persisted JSON format.
type Entry struct {
	ID          string `json:"id"`
	Prompt      string `json:"prompt"`
	Style       string `json:"style"`
	AspectRatio string `json:"aspectRatio"`
	ImageURL    string `json:"imageUrl"`
}

// Options configures a Store.
type Options struct {
	Key    string
	Logger *infra.Logger
}

// Store loads and persists the log. It holds no state of its own; the caller
// owns the current log and passes it to Append.
type Store struct {
	kv     storage.KV
	key    string
	logger *infra.Logger
}

func NewStore(kv storage.KV, opts Options) (*Store, error) {
	if kv == nil {
		return nil, errors.New("history: storage is required")
	}
	key := strings.TrimSpace(opts.Key)
	if key == "" {
		key = DefaultKey
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.NopLogger()
	}
	return &Store{kv: kv, key: key, logger: logger}, nil
}

// Key returns the storage key the log lives under.
func (s *Store) Key() string {
	return s.key
}

// Load returns the persisted log, most recent first. It never fails: a
// missing key yields an empty log, and unreadable content is discarded along
// with the key so the next Append starts clean.
func (s *Store) Load(ctx context.Context) []Entry {
	raw, err := s.kv.Get(ctx, s.key)
	if errors.Is(err, storage.ErrNotFound) {
		return []Entry{}
	}
	if err != nil {
		s.logger.Error().Err(err).Str("key", s.key).Msg("history: read failed")
		return []Entry{}
	}

	var entries []Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		s.logger.Warn().Err(err).Str("key", s.key).Msg("history: discarding corrupt log")
		if delErr := s.kv.Delete(ctx, s.key); delErr != nil {
			s.logger.Error().Err(delErr).Str("key", s.key).Msg("history: remove corrupt log failed")
		}
		return []Entry{}
	}
	valid := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if !wellFormed(e) {
			s.logger.Warn().Str("key", s.key).Str("id", e.ID).Msg("history: dropping malformed entry")
			continue
		}
		valid = append(valid, e)
	}
	if len(valid) > MaxEntries {
		valid = valid[:MaxEntries]
	}
	return valid
}

// wellFormed reports whether e could have been produced by a generation:
// it needs an id and an image, and its style and aspect ratio must be
// catalog values.
func wellFormed(e Entry) bool {
	if e.ID == "" || e.ImageURL == "" {
		return false
	}
	if _, ok := catalog.StyleByValue(e.Style); !ok {
		return false
	}
	return catalog.IsAspectRatio(e.AspectRatio)
}

// Append puts entry at the front of current, truncates to MaxEntries and
// persists the result. The new log is returned even when persisting fails so
// the caller's in-memory view stays current.
func (s *Store) Append(ctx context.Context, entry Entry, current []Entry) ([]Entry, error) {
	next := make([]Entry, 0, MaxEntries)
	next = append(next, entry)
	for _, e := range current {
		if len(next) == MaxEntries {
			break
		}
		next = append(next, e)
	}

	payload, err := json.Marshal(next)
	if err != nil {
		return next, fmt.Errorf("history: encode log: %w", err)
	}
	if err := s.kv.Set(ctx, s.key, payload); err != nil {
		s.logger.Error().Err(err).Str("key", s.key).Msg("history: persist failed")
		return next, fmt.Errorf("history: persist log: %w", err)
	}
	s.logger.Debug().Str("id", entry.ID).Int("entries", len(next)).Msg("history: appended")
	return next, nil
}

// Find returns the entry with the given id.
func Find(entries []Entry, id string) (Entry, bool) {
	for _, e := range entries {
		if e.ID == id {
			return e, true
		}
	}
	return Entry{}, false
}

// NewID derives an entry id from now. When the id is already taken in
// existing, a numeric suffix keeps it unique.
func NewID(now time.Time, existing []Entry) string {
	base := now.UTC().Format(time.RFC3339Nano)
	id := base
	for n := 2; ; n++ {
		if _, taken := Find(existing, id); !taken {
			return id
		}
		id = base + "-" + strconv.Itoa(n)
	}
}

// CreatedAt recovers the completion time encoded in an id from NewID,
// ignoring any collision suffix.
func CreatedAt(id string) (time.Time, bool) {
	if i := strings.LastIndex(id, "Z-"); i >= 0 {
		id = id[:i+1]
	}
	t, err := time.Parse(time.RFC3339Nano, id)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
