package s3blob

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/alanyoungcy/sportsxchange/internal/domain"
)

// TradeArchiveStore is the primary trade store as the archiver sees it.
type TradeArchiveStore interface {
	// ListBefore returns trades strictly before the cutoff, oldest first.
	ListBefore(ctx context.Context, before time.Time) ([]domain.TradeEvent, error)
	// DeleteBefore removes trades strictly before the cutoff.
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// ArchiverOption configures an ArchiveImpl.
type ArchiverOption func(*ArchiveImpl)

// WithPrune deletes archived trades from the primary store after each
// successful upload. History older than the watermark is then only served by
// ListArchived.
func WithPrune() ArchiverOption {
	return func(a *ArchiveImpl) { a.prune = true }
}

// ArchiveImpl implements domain.Archiver and domain.TradeArchive. Each run
// uploads the trades between the previous run's cutoff and the new one as a
// single batch named after the cutoff, so the batch listing doubles as the
// watermark.
type ArchiveImpl struct {
	writer domain.TradeArchiveWriter
	reader domain.TradeArchiveReader
	trades TradeArchiveStore
	audit  domain.AuditStore
	prune  bool
}

// NewArchiver creates a new ArchiveImpl.
func NewArchiver(writer domain.TradeArchiveWriter, reader domain.TradeArchiveReader, trades TradeArchiveStore, audit domain.AuditStore, opts ...ArchiverOption) *ArchiveImpl {
	a := &ArchiveImpl{writer: writer, reader: reader, trades: trades, audit: audit}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ArchiveTrades uploads trades created after the last archived cutoff and
// before the given one, returning how many were written.
func (a *ArchiveImpl) ArchiveTrades(ctx context.Context, before time.Time) (int64, error) {
	before = before.UTC().Truncate(time.Second)
	after, err := a.Watermark(ctx)
	if err != nil {
		return 0, err
	}
	if !after.IsZero() && !before.After(after) {
		return 0, nil
	}

	all, err := a.trades.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive trades query: %w", err)
	}
	trades := all[:0:0]
	for _, t := range all {
		if !t.CreatedAt.Before(after) {
			trades = append(trades, t)
		}
	}
	if len(trades) == 0 {
		return 0, nil
	}

	key := batchKey(before)
	if err := a.writer.WriteTrades(ctx, key, trades); err != nil {
		return 0, fmt.Errorf("s3blob: archive trades upload: %w", err)
	}

	count := int64(len(trades))
	details := map[string]any{
		"path":   key,
		"count":  count,
		"after":  after.Format(time.RFC3339),
		"before": before.Format(time.RFC3339),
	}
	if a.prune {
		pruned, err := a.trades.DeleteBefore(ctx, before)
		if err != nil {
			return count, fmt.Errorf("s3blob: archive trades prune: %w", err)
		}
		details["pruned"] = pruned
	}
	if err := a.audit.Log(ctx, "archive.trades", details); err != nil {
		return count, fmt.Errorf("s3blob: archive trades audit log: %w", err)
	}
	return count, nil
}

// Watermark returns the newest cutoff already archived, or the zero time.
func (a *ArchiveImpl) Watermark(ctx context.Context) (time.Time, error) {
	batches, err := a.reader.Batches(ctx)
	if err != nil {
		return time.Time{}, fmt.Errorf("s3blob: archive watermark: %w", err)
	}
	if len(batches) == 0 {
		return time.Time{}, nil
	}
	return batches[len(batches)-1].Cutoff, nil
}

// ListArchived walks batches from the newest and returns matching trades,
// newest first. Batches entirely outside opts.Since and opts.Until are not
// downloaded.
func (a *ArchiveImpl) ListArchived(ctx context.Context, filter domain.TradeFilter, opts domain.ListOpts) ([]domain.TradeEvent, error) {
	batches, err := a.reader.Batches(ctx)
	if err != nil {
		return nil, fmt.Errorf("s3blob: list archived: %w", err)
	}

	var (
		out     []domain.TradeEvent
		skipped int
	)
	for i := len(batches) - 1; i >= 0; i-- {
		b := batches[i]
		if opts.Since != nil && !b.Cutoff.After(*opts.Since) {
			break
		}
		if opts.Until != nil && i > 0 && !batches[i-1].Cutoff.Before(*opts.Until) {
			continue
		}

		trades, err := a.reader.ReadTrades(ctx, b.Key)
		if err != nil {
			return nil, fmt.Errorf("s3blob: list archived: %w", err)
		}
		sort.SliceStable(trades, func(x, y int) bool { return trades[x].CreatedAt.After(trades[y].CreatedAt) })

		for _, t := range trades {
			if !filter.Matches(t) {
				continue
			}
			if opts.Until != nil && !t.CreatedAt.Before(*opts.Until) {
				continue
			}
			if opts.Since != nil && t.CreatedAt.Before(*opts.Since) {
				continue
			}
			if skipped < opts.Offset {
				skipped++
				continue
			}
			out = append(out, t)
			if opts.Limit > 0 && len(out) >= opts.Limit {
				return out, nil
			}
		}
	}
	return out, nil
}

var (
	_ domain.Archiver     = (*ArchiveImpl)(nil)
	_ domain.TradeArchive = (*ArchiveImpl)(nil)
)
