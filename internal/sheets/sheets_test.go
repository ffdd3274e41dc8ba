package sheets

import (
	"context"
	"path/filepath"
	"testing"

	"leadboard/internal/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestColumnLetter(t *testing.T) {
	tests := []struct {
		index int
		want  string
	}{
		{0, "A"},
		{3, "D"},
		{25, "Z"},
		{26, "AA"},
		{27, "AB"},
		{51, "AZ"},
		{52, "BA"},
		{701, "ZZ"},
		{702, "AAA"},
		{-1, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ColumnLetter(tt.index), "index %d", tt.index)
	}
}

func TestRanges(t *testing.T) {
	assert.Equal(t, "'Página1'!A:Z", FullRange("Página1"))
	assert.Equal(t, "'Leads 2024'!1:1", HeaderRange("Leads 2024"))
	assert.Equal(t, "'Página1'!C:C", ColumnRange("Página1", 2))
	assert.Equal(t, "'Página1'!AB17", CellRange("Página1", 27, 17))
	assert.Equal(t, "'Joe''s'!A:Z", FullRange("Joe's"))
}

func TestStringify(t *testing.T) {
	in := [][]interface{}{
		{"Nome", "Telefone"},
		{"Ana", float64(11999990000), nil, true},
	}
	out := stringify(in)
	require.Len(t, out, 2)
	assert.Equal(t, []string{"Ana", "11999990000", "", "true"}, out[1])
}

func TestNewClient_MissingCredentials(t *testing.T) {
	ctx := context.Background()

	_, err := NewClient(ctx, "sheet", "", zap.NewNop())
	assert.ErrorIs(t, err, apperr.ErrAuthenticationMissing)

	_, err = NewClient(ctx, "sheet", filepath.Join(t.TempDir(), "missing.json"), zap.NewNop())
	assert.ErrorIs(t, err, apperr.ErrAuthenticationMissing)
}
