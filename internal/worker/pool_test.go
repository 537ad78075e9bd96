package worker

import (
	"context"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artemshloyda/xlsximages/internal/extract"
	"github.com/artemshloyda/xlsximages/internal/scanner"
)

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{5 << 20, "5.0 MB"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatBytes(tt.in))
	}
}

func TestRunner_SequentialStats(t *testing.T) {
	var (
		mu     sync.Mutex
		order  []string
		active int
		maxAct int
	)
	process := func(_ context.Context, f scanner.File) (*extract.RunResult, error) {
		mu.Lock()
		active++
		if active > maxAct {
			maxAct = active
		}
		order = append(order, f.RelPath)
		mu.Unlock()
		defer func() {
			mu.Lock()
			active--
			mu.Unlock()
		}()

		switch f.RelPath {
		case "broken.xlsx":
			return nil, errors.New("лист не найден")
		case "panic.xlsx":
			panic("boom")
		}
		return &extract.RunResult{Succeeded: 2, Failed: 1, Skipped: 1, OutputBytes: 100}, nil
	}

	r := New(process, 1)
	var results []Result
	r.OnResult = func(res Result) { results = append(results, res) }
	r.Start(context.Background())

	for _, name := range []string{"a.xlsx", "broken.xlsx", "panic.xlsx", "b.xlsx"} {
		require.NoError(t, r.Submit(context.Background(), scanner.File{RelPath: name}))
	}
	st := r.Wait()

	assert.Equal(t, []string{"a.xlsx", "broken.xlsx", "panic.xlsx", "b.xlsx"}, order)
	assert.Equal(t, 1, maxAct)
	assert.Equal(t, Stats{
		Workbooks: 4, WorkbooksOK: 2, WorkbooksFailed: 2,
		Saved: 4, Failed: 2, Skipped: 2, OutputBytes: 200,
	}, st)
	assert.True(t, st.HasFailures())
	require.Len(t, results, 4)
	assert.ErrorContains(t, results[2].Err, "boom")

	assert.ErrorIs(t, r.Submit(context.Background(), scanner.File{}), ErrClosed)
	r.Close()
}

func TestRunner_CanceledSkipsQueue(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	process := func(_ context.Context, _ scanner.File) (*extract.RunResult, error) {
		calls++
		cancel()
		return &extract.RunResult{Succeeded: 1}, nil
	}

	r := New(process, 3)
	for _, name := range []string{"a.xlsx", "b.xlsx", "c.xlsx"} {
		require.NoError(t, r.Submit(context.Background(), scanner.File{RelPath: name}))
	}
	r.Start(ctx)
	st := r.Wait()

	assert.Equal(t, 1, calls)
	assert.True(t, st.Canceled)
	assert.Equal(t, int64(1), st.Workbooks)
	assert.False(t, st.HasFailures())
}
