package leads

import (
	"context"
	"fmt"
	"sort"
	"time"

	"leadboard/internal/apperr"
	"leadboard/internal/mirror"
	"leadboard/internal/sheets"
	"leadboard/pkg/models"

	"go.uber.org/zap"
)

// Result summarizes one reconciliation cycle.
type Result struct {
	Written int `json:"written"`
	Created int `json:"created"`
}

// Reconciler merges the spreadsheet contents into the mirror.
type Reconciler struct {
	source   sheets.Source
	store    mirror.Store
	sheet    string
	attempts int
	log      *zap.Logger
	now      func() time.Time
}

func NewReconciler(source sheets.Source, store mirror.Store, sheetName string, log *zap.Logger) *Reconciler {
	return &Reconciler{
		source:   source,
		store:    store,
		sheet:    sheetName,
		attempts: mirror.DefaultUpdateAttempts,
		log:      log.Named("reconcile"),
		now:      time.Now,
	}
}

// Run reads the whole sheet and reconciles it. A spreadsheet failure returns
// before anything is written to the mirror.
func (r *Reconciler) Run(ctx context.Context) (Result, error) {
	rows, err := r.source.ReadRange(ctx, sheets.FullRange(r.sheet))
	if err != nil {
		return Result{}, apperr.Upstream("read spreadsheet", err)
	}
	return r.Reconcile(ctx, rows)
}

// Reconcile appends every contact missing from the board to the default bucket,
// leaves placed contacts where they are, then replaces the flat contact map.
func (r *Reconciler) Reconcile(ctx context.Context, rows [][]string) (Result, error) {
	contacts := NormalizeRows(rows)

	now := r.now().UTC()
	for i := range contacts {
		contacts[i].UpdatedAt = &now
		contacts[i].SyncedAt = &now
		if contacts[i].LowConfidence {
			r.log.Warn("lead without phone number, using row key",
				zap.String("key", contacts[i].ID),
				zap.String("name", contacts[i].Name))
		}
	}

	var created int
	_, err := mirror.UpdateBoard(ctx, r.store, func(board models.Board) (models.Board, bool, error) {
		created = 0
		if board == nil {
			board = models.NewBoard()
		}
		placed := board.Keys()
		target := board.DefaultBucket()
		for _, c := range contacts {
			if _, ok := placed[c.ID]; ok {
				continue
			}
			if board[target].Items == nil {
				board[target].Items = []models.Contact{}
			}
			board[target].Items = append(board[target].Items, c)
			placed[c.ID] = struct{}{}
			created++
		}
		return board, true, nil
	}, r.attempts)
	if err != nil {
		return Result{}, fmt.Errorf("reconcile board: %w", err)
	}

	flat := make(map[string]models.Contact, len(contacts))
	for _, c := range contacts {
		flat[c.ID] = c
	}
	if err := mirror.SaveContacts(ctx, r.store, flat); err != nil {
		return Result{}, fmt.Errorf("reconcile contacts: %w", err)
	}

	r.log.Info("reconciliation finished",
		zap.Int("written", len(flat)),
		zap.Int("created", created))

	return Result{Written: len(flat), Created: created}, nil
}

// MergedBoard returns the stored board with every flat contact that has no
// placement appended to the default bucket. Nothing is written.
func (r *Reconciler) MergedBoard(ctx context.Context) (models.Board, error) {
	contacts, err := mirror.LoadContacts(ctx, r.store)
	if err != nil {
		return nil, err
	}
	board, _, err := mirror.LoadBoard(ctx, r.store)
	if err != nil {
		return nil, err
	}
	if board == nil {
		board = models.NewBoard()
	}

	placed := board.Keys()
	missing := make([]models.Contact, 0)
	for id, c := range contacts {
		if _, ok := placed[id]; !ok {
			missing = append(missing, c)
		}
	}
	sort.Slice(missing, func(i, j int) bool {
		if missing[i].RowNumber != missing[j].RowNumber {
			return missing[i].RowNumber < missing[j].RowNumber
		}
		return missing[i].ID < missing[j].ID
	})

	target := board.DefaultBucket()
	board[target].Items = append(board[target].Items, missing...)
	return board, nil
}

// SaveBoard replaces the board with one edited by the UI. When an identity
// key shows up more than once, only its first occurrence is kept.
func (r *Reconciler) SaveBoard(ctx context.Context, board models.Board) error {
	if board == nil {
		return fmt.Errorf("board must be a list of buckets: %w", apperr.ErrInvalidInput)
	}

	seen := make(map[string]struct{})
	dropped := 0
	for i := range board {
		items := make([]models.Contact, 0, len(board[i].Items))
		for _, item := range board[i].Items {
			if item.ID != "" {
				if _, dup := seen[item.ID]; dup {
					dropped++
					continue
				}
				seen[item.ID] = struct{}{}
			}
			items = append(items, item)
		}
		board[i].Items = items
	}
	if dropped > 0 {
		r.log.Warn("dropped duplicate board entries", zap.Int("count", dropped))
	}

	return mirror.SaveBoard(ctx, r.store, board)
}
