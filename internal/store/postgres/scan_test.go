package postgres

import (
	"errors"
	"testing"
	"time"

	"github.com/alanyoungcy/sportsxchange/internal/domain"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNumericScan(t *testing.T) {
	var n uint64
	require.NoError(t, numCol(&n).Scan("18446744073709551615"))
	assert.Equal(t, uint64(18446744073709551615), n)

	require.NoError(t, numCol(&n).Scan(nil))
	assert.Zero(t, n)

	assert.ErrorIs(t, numCol(&n).Scan("18446744073709551616"), domain.ErrOverflow)
	assert.Error(t, numCol(&n).Scan(12))
	assert.Equal(t, "42", num(42))
}

func TestSideScan(t *testing.T) {
	var s *domain.Side
	require.NoError(t, sideCol(&s).Scan("b"))
	require.NotNil(t, s)
	assert.Equal(t, domain.SideB, *s)
	assert.Equal(t, "b", *sideText(s))

	require.NoError(t, sideCol(&s).Scan(nil))
	assert.Nil(t, s)
	assert.Nil(t, sideText(nil))

	assert.ErrorIs(t, sideCol(&s).Scan("draw"), domain.ErrInvalidSide)
}

func TestClassify(t *testing.T) {
	dup := &pgconn.PgError{Code: codeUniqueViolation, ConstraintName: "markets_pkey"}
	assert.ErrorIs(t, classify(dup), domain.ErrAlreadyExists)

	check := &pgconn.PgError{Code: codeCheckViolation, ConstraintName: "balances_amount_check"}
	assert.ErrorIs(t, classify(check), domain.ErrOverflow)

	other := errors.New("connection reset")
	assert.Equal(t, other, classify(other))
}

func TestAppendListOpts(t *testing.T) {
	since := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	query, args := appendListOpts("SELECT 1 FROM t WHERE a = $1", []any{"x"},
		domain.ListOpts{Since: &since, Limit: 10, Offset: 20}, "created_at", "DESC")

	assert.Equal(t,
		"SELECT 1 FROM t WHERE a = $1 AND created_at >= $2 ORDER BY created_at DESC LIMIT $3 OFFSET $4",
		query)
	assert.Equal(t, []any{"x", since, 10, 20}, args)

	query, args = appendListOpts("SELECT 1 FROM t WHERE 1=1", nil, domain.ListOpts{}, "created_at", "ASC")
	assert.Equal(t, "SELECT 1 FROM t WHERE 1=1 ORDER BY created_at ASC", query)
	assert.Empty(t, args)
}

func TestDSN(t *testing.T) {
	assert.Equal(t, "postgres://sx:pw@db:5432/sx?sslmode=disable",
		DSN(ClientConfig{Host: "db", Database: "sx", User: "sx", Password: "pw"}))
	assert.Equal(t, "postgres://override", DSN(ClientConfig{DSN: "postgres://override", Host: "ignored"}))
}
