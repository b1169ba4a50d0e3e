package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingArchiver struct {
	cutoffs []time.Time
	n       int64
	err     error
}

func (r *recordingArchiver) ArchiveTrades(_ context.Context, before time.Time) (int64, error) {
	r.cutoffs = append(r.cutoffs, before)
	return r.n, r.err
}

func TestArchiverRunUsesRetention(t *testing.T) {
	blob := &recordingArchiver{n: 42}
	a := NewArchiver(blob, 30, slog.New(slog.NewTextHandler(io.Discard, nil)))
	now := time.Date(2026, 10, 19, 3, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return now }

	n, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 42, n)
	require.Len(t, blob.cutoffs, 1)
	assert.Equal(t, time.Date(2026, 9, 19, 3, 0, 0, 0, time.UTC), blob.cutoffs[0])

	blob.err = errors.New("bucket gone")
	_, err = a.Run(context.Background())
	assert.ErrorContains(t, err, "bucket gone")
}

func TestScheduleNext(t *testing.T) {
	base := time.Date(2026, 10, 19, 3, 0, 30, 0, time.UTC) // a Monday

	cases := []struct {
		expr string
		want time.Time
	}{
		{"0 3 * * *", time.Date(2026, 10, 20, 3, 0, 0, 0, time.UTC)},
		{"*/15 * * * *", time.Date(2026, 10, 19, 3, 15, 0, 0, time.UTC)},
		{"30 2-4 * * *", time.Date(2026, 10, 19, 3, 30, 0, 0, time.UTC)},
		{"0 0 1 * *", time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)},
		{"0 10 * * 4", time.Date(2026, 10, 22, 10, 0, 0, 0, time.UTC)},
		{"5,10 3 19 10 *", time.Date(2026, 10, 19, 3, 5, 0, 0, time.UTC)},
		{"@daily", time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC)},
		{"0 3 * * MON", time.Date(2026, 10, 26, 3, 0, 0, 0, time.UTC)},
		{"CRON_TZ=Asia/Hong_Kong 0 12 * * *", time.Date(2026, 10, 19, 4, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		t.Run(tc.expr, func(t *testing.T) {
			s, err := ParseSchedule(tc.expr)
			require.NoError(t, err)
			got := s.Next(base)
			assert.True(t, tc.want.Equal(got), "got %s", got)
		})
	}
}

func TestParseScheduleRejects(t *testing.T) {
	for _, expr := range []string{
		"0 3 * *",
		"60 * * * *",
		"* 24 * * *",
		"*/0 * * * *",
		"5-1 * * * *",
		"x * * * *",
	} {
		_, err := ParseSchedule(expr)
		assert.Error(t, err, expr)
	}

	s, err := ParseSchedule("0 0 31 2 *")
	require.NoError(t, err)
	assert.True(t, s.Next(time.Now()).IsZero())
}

func TestRunCronNeverFires(t *testing.T) {
	a := NewArchiver(&recordingArchiver{}, 30, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.ErrorContains(t, a.RunCron(context.Background(), "0 0 30 2 *"), "never fires")
}

func TestRunCronStopsOnCancel(t *testing.T) {
	a := NewArchiver(&recordingArchiver{}, 30, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, a.RunCron(ctx, "0 3 * * *"), context.Canceled)
	assert.Error(t, a.RunCron(context.Background(), "bad"))
}
