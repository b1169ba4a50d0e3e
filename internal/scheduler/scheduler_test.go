package scheduler

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alanyoungcy/sportsxchange/internal/domain"
	"github.com/alanyoungcy/sportsxchange/internal/engine"
	badgerstore "github.com/alanyoungcy/sportsxchange/internal/store/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const authority = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"

var kickoff = time.Date(2026, 11, 8, 18, 0, 0, 0, time.UTC)

type harness struct {
	sched   *Scheduler
	markets *badgerstore.MarketStore
	path    string
	now     time.Time
}

func newHarness(t *testing.T, kind domain.MarketKind) *harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := badgerstore.Open(badgerstore.Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	markets := badgerstore.NewMarketStore(db)
	eng := engine.New(badgerstore.NewStore(db), markets, engine.Config{ValueAsset: "USDC", Treasury: authority})
	require.NoError(t, eng.Bootstrap(context.Background()))

	h := &harness{markets: markets, path: filepath.Join(t.TempDir(), "schedule.yaml")}
	h.sched = New(Config{
		SchedulePath:     h.path,
		CreateAhead:      24 * time.Hour,
		Kind:             kind,
		InitialLiquidity: 1_000_000,
		Curve:            domain.CurveParams{Shape: domain.CurveShapePower, K: 1_000_000_000, N: 100},
		Authority:        authority,
	}, eng, markets, logger, WithClock(func() time.Time { return h.now }))
	return h
}

func (h *harness) writeSchedule(t *testing.T, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(h.path, []byte(body), 0o600))
}

func (h *harness) reconcileAt(t *testing.T, now time.Time) Report {
	t.Helper()
	h.now = now
	r, err := h.sched.Reconcile(context.Background())
	require.NoError(t, err)
	return r
}

const oneGame = `
week: "10"
games:
  - game_id: nfl-kc-buf
    home_team: Chiefs
    away_team: Bills
    kickoff: 2026-11-08T18:00:00Z
`

func TestCurveGameLifecycle(t *testing.T) {
	h := newHarness(t, domain.MarketKindCurve)
	h.writeSchedule(t, oneGame)
	ctx := context.Background()

	assert.Equal(t, Report{}, h.reconcileAt(t, kickoff.Add(-48*time.Hour)))
	_, err := h.markets.GetByID(ctx, "nfl-kc-buf")
	require.ErrorIs(t, err, domain.ErrNotFound)

	assert.Equal(t, Report{Created: 1}, h.reconcileAt(t, kickoff.Add(-time.Hour)))
	m, err := h.markets.GetByID(ctx, "nfl-kc-buf")
	require.NoError(t, err)
	assert.Equal(t, domain.MarketStateActive, m.State)
	assert.Equal(t, authority, m.Authority)
	assert.Equal(t, [2]string{"Chiefs", "Bills"}, m.SideNames)
	require.NotNil(t, m.KickoffAt)
	assert.True(t, m.KickoffAt.Equal(kickoff))

	// Nothing to do until kickoff.
	assert.Equal(t, Report{}, h.reconcileAt(t, kickoff.Add(-time.Minute)))

	assert.Equal(t, Report{Halted: 1}, h.reconcileAt(t, kickoff))
	m, err = h.markets.GetByID(ctx, "nfl-kc-buf")
	require.NoError(t, err)
	assert.Equal(t, domain.MarketStateHalted, m.State)

	h.writeSchedule(t, oneGame+"    result: away\n")
	assert.Equal(t, Report{Resolved: 1}, h.reconcileAt(t, kickoff.Add(3*time.Hour)))
	m, err = h.markets.GetByID(ctx, "nfl-kc-buf")
	require.NoError(t, err)
	assert.Equal(t, domain.MarketStateResolved, m.State)
	require.NotNil(t, m.Winner)
	assert.Equal(t, domain.SideB, *m.Winner)

	assert.Equal(t, Report{}, h.reconcileAt(t, kickoff.Add(4*time.Hour)))
}

func TestPoolGameIsSeeded(t *testing.T) {
	h := newHarness(t, domain.MarketKindPool)
	h.writeSchedule(t, oneGame)

	assert.Equal(t, Report{Created: 1, Opened: 1}, h.reconcileAt(t, kickoff.Add(-time.Hour)))
	m, err := h.markets.GetByID(context.Background(), "nfl-kc-buf")
	require.NoError(t, err)
	assert.Equal(t, domain.MarketStateActive, m.State)
	assert.Equal(t, uint64(1_000_000), m.Pool.ReserveA)
	assert.Equal(t, uint64(1_000_000), m.Pool.ReserveB)
}

func TestLateGameIsSkipped(t *testing.T) {
	h := newHarness(t, domain.MarketKindCurve)
	h.writeSchedule(t, oneGame)

	assert.Equal(t, Report{}, h.reconcileAt(t, kickoff.Add(time.Minute)))
	_, err := h.markets.GetByID(context.Background(), "nfl-kc-buf")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFailedGameDoesNotStopPass(t *testing.T) {
	h := newHarness(t, domain.MarketKindCurve)
	h.writeSchedule(t, `
games:
  - game_id: "bad id with spaces"
    home_team: A
    away_team: B
    kickoff: 2026-11-08T18:00:00Z
  - game_id: nba-lal-bos
    home_team: Lakers
    away_team: Celtics
    kickoff: 2026-11-08T18:00:00Z
    kind: pool
`)

	assert.Equal(t, Report{Created: 1, Opened: 1, Failed: 1}, h.reconcileAt(t, kickoff.Add(-time.Hour)))
	m, err := h.markets.GetByID(context.Background(), "nba-lal-bos")
	require.NoError(t, err)
	assert.Equal(t, domain.MarketKindPool, m.Kind)
}

func TestParseSchedule(t *testing.T) {
	s, err := ParseSchedule(nil)
	require.NoError(t, err)
	assert.Empty(t, s.Games)

	s, err = ParseSchedule([]byte(oneGame))
	require.NoError(t, err)
	require.Len(t, s.Games, 1)
	assert.Equal(t, "10", s.Week)
	assert.True(t, s.Games[0].Kickoff.Equal(kickoff))

	_, err = ParseSchedule([]byte("games:\n  - game_id: x\n    home_team: A\n    away_team: B\n    kickof: 2026-11-08T18:00:00Z\n"))
	assert.Error(t, err)

	_, err = ParseSchedule([]byte(`
games:
  - game_id: g1
    home_team: A
    away_team: B
    kickoff: 2026-11-08T18:00:00Z
    result: draw
  - game_id: g1
    home_team: A
    away_team: B
    kickoff: 2026-11-08T18:00:00Z
    kind: orderbook
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid side")
	assert.Contains(t, err.Error(), "duplicate game_id")
	assert.Contains(t, err.Error(), "kind must be pool or curve")
}

func TestReconcileMissingSchedule(t *testing.T) {
	h := newHarness(t, domain.MarketKindCurve)
	_, err := h.sched.Reconcile(context.Background())
	assert.Error(t, err)
}
