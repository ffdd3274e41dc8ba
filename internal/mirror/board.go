package mirror

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"leadboard/internal/apperr"
	"leadboard/pkg/models"
)

// DefaultUpdateAttempts is the retry budget of UpdateBoard callers that do not pick one.
const DefaultUpdateAttempts = 5

// BoardMutation receives the current board (nil when absent or malformed) and
// returns the board to write. Returning write=false leaves the mirror untouched.
type BoardMutation func(board models.Board) (next models.Board, write bool, err error)

// LoadBoard reads the board document. A missing or malformed document yields a
// nil board; the returned version is what CompareAndSwap expects.
func LoadBoard(ctx context.Context, s Store) (models.Board, int64, error) {
	doc, err := s.Get(ctx, PathBoard)
	if err != nil {
		return nil, 0, apperr.Upstream("get board", err)
	}
	if !doc.Exists {
		return nil, 0, nil
	}
	return decodeBoard(doc.Body), doc.Version, nil
}

// SaveBoard replaces the board document.
func SaveBoard(ctx context.Context, s Store, board models.Board) error {
	body, err := json.Marshal(board)
	if err != nil {
		return fmt.Errorf("encode board: %w", err)
	}
	return apperr.Upstream("put board", s.Put(ctx, PathBoard, body))
}

// UpdateBoard applies fn to the current board and writes the result with
// CompareAndSwap. On a version conflict the board is re-read and fn applied
// again, up to attempts times.
func UpdateBoard(ctx context.Context, s Store, fn BoardMutation, attempts int) (models.Board, error) {
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		board, version, err := LoadBoard(ctx, s)
		if err != nil {
			return nil, err
		}

		next, write, err := fn(board)
		if err != nil {
			return nil, err
		}
		if !write {
			return next, nil
		}

		body, err := json.Marshal(next)
		if err != nil {
			return nil, fmt.Errorf("encode board: %w", err)
		}

		err = s.CompareAndSwap(ctx, PathBoard, version, body)
		if err == nil {
			return next, nil
		}
		if !errors.Is(err, apperr.ErrVersionConflict) {
			return nil, apperr.Upstream("put board", err)
		}
		lastErr = err
	}
	return nil, fmt.Errorf("update board after %d attempts: %w", attempts, lastErr)
}

// LoadContacts reads the flat contact map keyed by identity key.
func LoadContacts(ctx context.Context, s Store) (map[string]models.Contact, error) {
	doc, err := s.Get(ctx, PathContacts)
	if err != nil {
		return nil, apperr.Upstream("get contacts", err)
	}
	contacts := make(map[string]models.Contact)
	if !doc.Exists || len(doc.Body) == 0 {
		return contacts, nil
	}
	if err := json.Unmarshal(doc.Body, &contacts); err != nil {
		return nil, fmt.Errorf("decode contacts: %w", err)
	}
	for key, c := range contacts {
		if c.ID == "" {
			delete(contacts, key)
		}
	}
	return contacts, nil
}

// SaveContacts replaces the flat contact map.
func SaveContacts(ctx context.Context, s Store, contacts map[string]models.Contact) error {
	body, err := json.Marshal(contacts)
	if err != nil {
		return fmt.Errorf("encode contacts: %w", err)
	}
	return apperr.Upstream("put contacts", s.Put(ctx, PathContacts, body))
}

// decodeBoard returns nil unless body is an array holding at least one
// bucket object. Null or non-object buckets and items without an identity key
// are dropped; a mistyped field never discards the rest of the board.
func decodeBoard(body []byte) models.Board {
	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil
	}
	board := make(models.Board, 0, len(raw))
	for _, entry := range raw {
		var bucket models.Bucket
		if bytes.Equal(bytes.TrimSpace(entry), []byte("null")) || json.Unmarshal(entry, &bucket) != nil {
			continue
		}
		items := make([]models.Contact, 0, len(bucket.Items))
		for _, item := range bucket.Items {
			if item.ID != "" {
				items = append(items, item)
			}
		}
		bucket.Items = items
		board = append(board, bucket)
	}
	if len(board) == 0 {
		return nil
	}
	return board
}
