package leads

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"leadboard/internal/mirror"
	"leadboard/internal/sheets"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const testSheet = "Página1"

// fakeSheet serves the ranges the sheets package builds for testSheet.
type fakeSheet struct {
	mu      sync.Mutex
	grid    [][]string
	reads   []string
	writes  []string
	readErr error
}

func newFakeSheet(grid [][]string) *fakeSheet {
	return &fakeSheet{grid: grid}
}

func (f *fakeSheet) width() int {
	w := 0
	for _, row := range f.grid {
		if len(row) > w {
			w = len(row)
		}
	}
	return w
}

func (f *fakeSheet) ReadRange(_ context.Context, rng string) ([][]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads = append(f.reads, rng)
	if f.readErr != nil {
		return nil, f.readErr
	}

	switch rng {
	case sheets.FullRange(testSheet):
		return copyGrid(f.grid), nil
	case sheets.HeaderRange(testSheet):
		if len(f.grid) == 0 {
			return nil, nil
		}
		return copyGrid(f.grid[:1]), nil
	}
	for col := 0; col < f.width(); col++ {
		if rng != sheets.ColumnRange(testSheet, col) {
			continue
		}
		out := make([][]string, len(f.grid))
		for i, row := range f.grid {
			if col < len(row) && row[col] != "" {
				out[i] = []string{row[col]}
			} else {
				out[i] = []string{}
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("unexpected range %s", rng)
}

func (f *fakeSheet) WriteRange(_ context.Context, rng string, values [][]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for r := range f.grid {
		for c := 0; c < f.width(); c++ {
			if rng != sheets.CellRange(testSheet, c, r+1) {
				continue
			}
			for len(f.grid[r]) <= c {
				f.grid[r] = append(f.grid[r], "")
			}
			f.grid[r][c] = values[0][0]
			f.writes = append(f.writes, rng)
			return nil
		}
	}
	return errors.New("unexpected write range " + rng)
}

func (f *fakeSheet) cell(row, col int) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if col < len(f.grid[row]) {
		return f.grid[row][col]
	}
	return ""
}

func copyGrid(grid [][]string) [][]string {
	out := make([][]string, len(grid))
	for i, row := range grid {
		out[i] = append([]string(nil), row...)
	}
	return out
}

func newTestStore(t *testing.T) mirror.Store {
	t.Helper()
	mr := miniredis.RunT(t)
	s := mirror.NewRedisStoreWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { s.Close() })
	return s
}
