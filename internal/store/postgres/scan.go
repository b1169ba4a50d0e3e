package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/alanyoungcy/sportsxchange/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// u64 scans a NUMERIC(20,0) column selected as text into a uint64.
type u64 struct{ dst *uint64 }

func numCol(dst *uint64) *u64 { return &u64{dst: dst} }

func (u *u64) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*u.dst = 0
		return nil
	case string:
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("postgres: numeric %q: %w", v, domain.ErrOverflow)
		}
		*u.dst = n
		return nil
	default:
		return fmt.Errorf("postgres: cannot scan %T into uint64", src)
	}
}

// num renders an amount for a NUMERIC parameter.
func num(v uint64) string { return strconv.FormatUint(v, 10) }

// side scans a nullable side column.
type side struct{ dst **domain.Side }

func sideCol(dst **domain.Side) *side { return &side{dst: dst} }

func (s *side) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*s.dst = nil
		return nil
	case string:
		parsed, err := domain.ParseSide(v)
		if err != nil {
			return err
		}
		*s.dst = &parsed
		return nil
	default:
		return fmt.Errorf("postgres: cannot scan %T into side", src)
	}
}

func sideText(s *domain.Side) *string {
	if s == nil {
		return nil
	}
	v := s.String()
	return &v
}

const (
	codeUniqueViolation = "23505"
	codeCheckViolation  = "23514"
)

// classify maps constraint violations onto domain errors.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return fmt.Errorf("%s: %w", pgErr.ConstraintName, domain.ErrAlreadyExists)
		case codeCheckViolation:
			return fmt.Errorf("%s: %w", pgErr.ConstraintName, domain.ErrOverflow)
		}
	}
	return err
}

// appendListOpts adds time bounds, ordering and pagination to query.
func appendListOpts(query string, args []any, opts domain.ListOpts, col, order string) (string, []any) {
	if opts.Since != nil {
		args = append(args, *opts.Since)
		query += fmt.Sprintf(" AND %s >= $%d", col, len(args))
	}
	if opts.Until != nil {
		args = append(args, *opts.Until)
		query += fmt.Sprintf(" AND %s < $%d", col, len(args))
	}
	query += fmt.Sprintf(" ORDER BY %s %s", col, order)
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	return query, args
}
