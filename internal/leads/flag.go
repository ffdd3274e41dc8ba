package leads

import (
	"context"
	"fmt"

	"leadboard/internal/apperr"
	"leadboard/internal/mirror"
	"leadboard/internal/sheets"
	"leadboard/pkg/models"

	"go.uber.org/zap"
)

const (
	phoneHeader = "telefone"
	stopHeader  = "stop"
)

// FlagResult describes a completed stop-flag write.
type FlagResult struct {
	Key           string `json:"contactId"`
	Row           int    `json:"linha"`
	Cell          string `json:"celula"`
	Stop          bool   `json:"stop"`
	MirrorUpdated bool   `json:"espelhoAtualizado"`
}

// FlagWriter writes the stop flag to the spreadsheet first, then to the
// matching board entry.
type FlagWriter struct {
	source   sheets.Source
	store    mirror.Store
	sheet    string
	attempts int
	log      *zap.Logger
}

func NewFlagWriter(source sheets.Source, store mirror.Store, sheetName string, log *zap.Logger) *FlagWriter {
	return &FlagWriter{
		source:   source,
		store:    store,
		sheet:    sheetName,
		attempts: mirror.DefaultUpdateAttempts,
		log:      log.Named("flag"),
	}
}

type rowLocation struct {
	row      int
	stopCol  int
	phoneCol int
}

// SetStopFlag writes "SIM" (value true) or an empty cell into the contact's
// stop column, then mirrors the value into the board. Keys without digits and
// row-derived keys are rejected with apperr.ErrNotFound before any I/O.
func (w *FlagWriter) SetStopFlag(ctx context.Context, key string, value bool) (FlagResult, error) {
	digits := DigitsOnly(key)
	if digits == "" || IsSynthetic(key) {
		return FlagResult{}, fmt.Errorf("contact %q has no phone key: %w", key, apperr.ErrNotFound)
	}

	loc, err := w.locate(ctx, digits)
	if err != nil {
		return FlagResult{}, err
	}

	flag := models.StopFlag(value)
	cell := sheets.CellRange(w.sheet, loc.stopCol, loc.row)
	if err := w.source.WriteRange(ctx, cell, [][]string{{flag.SheetValue()}}); err != nil {
		return FlagResult{}, apperr.Upstream("write stop cell", err)
	}
	w.log.Info("stop flag written",
		zap.String("contact", digits),
		zap.String("cell", cell),
		zap.Bool("stop", value))

	res := FlagResult{Key: digits, Row: loc.row, Cell: cell, Stop: value}

	_, err = mirror.UpdateBoard(ctx, w.store, func(board models.Board) (models.Board, bool, error) {
		res.MirrorUpdated = false
		b, i, ok := board.Find(digits)
		if !ok {
			return board, false, nil
		}
		board[b].Items[i].Stop = flag
		res.MirrorUpdated = true
		return board, true, nil
	}, w.attempts)
	if err != nil {
		res.MirrorUpdated = false
		return res, fmt.Errorf("mirror stop flag: %w", err)
	}
	if !res.MirrorUpdated {
		w.log.Info("contact not on board, flag will appear on next sync", zap.String("contact", digits))
	}
	return res, nil
}

func (w *FlagWriter) locate(ctx context.Context, digits string) (rowLocation, error) {
	header, err := w.source.ReadRange(ctx, sheets.HeaderRange(w.sheet))
	if err != nil {
		return rowLocation{}, apperr.Upstream("read header", err)
	}
	if len(header) == 0 {
		return rowLocation{}, fmt.Errorf("empty header row: %w", apperr.ErrSchemaMismatch)
	}

	loc := rowLocation{phoneCol: -1, stopCol: -1}
	for i, label := range header[0] {
		switch HeaderKey(label) {
		case phoneHeader:
			if loc.phoneCol < 0 {
				loc.phoneCol = i
			}
		case stopHeader:
			if loc.stopCol < 0 {
				loc.stopCol = i
			}
		}
	}
	if loc.phoneCol < 0 || loc.stopCol < 0 {
		return rowLocation{}, fmt.Errorf("header needs %q and %q columns: %w", phoneHeader, stopHeader, apperr.ErrSchemaMismatch)
	}

	column, err := w.source.ReadRange(ctx, sheets.ColumnRange(w.sheet, loc.phoneCol))
	if err != nil {
		return rowLocation{}, apperr.Upstream("read phone column", err)
	}
	for i, cells := range column {
		if len(cells) > 0 && DigitsOnly(cells[0]) == digits {
			loc.row = i + 1
			return loc, nil
		}
	}
	return rowLocation{}, fmt.Errorf("contact %s not in spreadsheet: %w", digits, apperr.ErrNotFound)
}
