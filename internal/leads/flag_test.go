package leads

import (
	"context"
	"testing"

	"leadboard/internal/apperr"
	"leadboard/internal/mirror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSetStopFlag_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	sheet := newFakeSheet(copyGrid(sampleRows))

	_, err := NewReconciler(sheet, store, testSheet, zap.NewNop()).Run(ctx)
	require.NoError(t, err)

	w := NewFlagWriter(sheet, store, testSheet, zap.NewNop())

	res, err := w.SetStopFlag(ctx, "11999990000", true)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Row)
	assert.Equal(t, "'Página1'!C2", res.Cell)
	assert.True(t, res.MirrorUpdated)
	assert.Equal(t, "SIM", sheet.cell(1, 2))

	res, err = w.SetStopFlag(ctx, "(11) 99999-0000", false)
	require.NoError(t, err)
	assert.True(t, res.MirrorUpdated)
	assert.Equal(t, "", sheet.cell(1, 2))

	board, _, err := mirror.LoadBoard(ctx, store)
	require.NoError(t, err)
	b, i, ok := board.Find("11999990000")
	require.True(t, ok)
	assert.False(t, bool(board[b].Items[i].Stop))
}

func TestSetStopFlag_NotOnBoard(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	sheet := newFakeSheet(copyGrid(sampleRows))

	res, err := NewFlagWriter(sheet, store, testSheet, zap.NewNop()).SetStopFlag(ctx, "21988887777", false)
	require.NoError(t, err)
	assert.False(t, res.MirrorUpdated)
	assert.Equal(t, "", sheet.cell(2, 2), "spreadsheet write stands")
}

func TestSetStopFlag_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("missing stop column", func(t *testing.T) {
		sheet := newFakeSheet([][]string{{"nome", "telefone"}, {"Ana", "11999990000"}})
		_, err := NewFlagWriter(sheet, newTestStore(t), testSheet, zap.NewNop()).SetStopFlag(ctx, "11999990000", true)
		assert.ErrorIs(t, err, apperr.ErrSchemaMismatch)
		assert.Empty(t, sheet.writes)
	})

	t.Run("unknown phone", func(t *testing.T) {
		sheet := newFakeSheet(copyGrid(sampleRows))
		_, err := NewFlagWriter(sheet, newTestStore(t), testSheet, zap.NewNop()).SetStopFlag(ctx, "31977776666", true)
		assert.ErrorIs(t, err, apperr.ErrNotFound)
		assert.Empty(t, sheet.writes)
	})

	t.Run("synthetic key", func(t *testing.T) {
		sheet := newFakeSheet(copyGrid(sampleRows))
		_, err := NewFlagWriter(sheet, newTestStore(t), testSheet, zap.NewNop()).SetStopFlag(ctx, "lead_7", true)
		assert.ErrorIs(t, err, apperr.ErrNotFound)
		assert.Empty(t, sheet.reads, "rejected before touching the spreadsheet")
	})

	t.Run("no digits", func(t *testing.T) {
		sheet := newFakeSheet(copyGrid(sampleRows))
		_, err := NewFlagWriter(sheet, newTestStore(t), testSheet, zap.NewNop()).SetStopFlag(ctx, "abc", true)
		assert.ErrorIs(t, err, apperr.ErrNotFound)
		assert.Empty(t, sheet.reads)
	})
}

func TestStopColumnBeyondZ(t *testing.T) {
	ctx := context.Background()
	header := make([]string, 28)
	header[0], header[1], header[27] = "nome", "telefone", "stop"
	row := make([]string, 28)
	row[0], row[1] = "Ana", "11999990000"
	sheet := newFakeSheet([][]string{header, row})

	res, err := NewFlagWriter(sheet, newTestStore(t), testSheet, zap.NewNop()).SetStopFlag(ctx, "11999990000", true)
	require.NoError(t, err)
	assert.Equal(t, "'Página1'!AB2", res.Cell)
	assert.Equal(t, "SIM", sheet.cell(1, 27))
}

func TestEndToEnd_SyncThenStop(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	sheet := newFakeSheet([][]string{{"nome", "telefone", "stop"}, {"Ana", "11999990000", ""}})

	res, err := NewReconciler(sheet, store, testSheet, zap.NewNop()).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)

	board, _, err := mirror.LoadBoard(ctx, store)
	require.NoError(t, err)
	require.Len(t, board, 1)
	require.Len(t, board[0].Items, 1)
	assert.Equal(t, "_leads", board[0].ID)
	assert.Equal(t, "11999990000", board[0].Items[0].ID)
	assert.False(t, bool(board[0].Items[0].Stop))

	_, err = NewFlagWriter(sheet, store, testSheet, zap.NewNop()).SetStopFlag(ctx, "11999990000", true)
	require.NoError(t, err)
	assert.Equal(t, "SIM", sheet.cell(1, 2))

	board, _, err = mirror.LoadBoard(ctx, store)
	require.NoError(t, err)
	assert.True(t, bool(board[0].Items[0].Stop))
}
