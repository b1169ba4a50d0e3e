package s3blob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/alanyoungcy/sportsxchange/internal/domain"
)

const (
	tradesPrefix = "archive/trades/"
	cutoffLayout = "20060102T150405Z"
)

// batchKey partitions archives by month of the cutoff:
//
//	archive/trades/2026-10/20261019T000000Z.jsonl
func batchKey(cutoff time.Time) string {
	return tradesPrefix + cutoff.Format("2006-01") + "/" + cutoff.Format(cutoffLayout) + ".jsonl"
}

// batchCutoff parses the cutoff back out of a batch key.
func batchCutoff(key string) (time.Time, bool) {
	if !strings.HasSuffix(key, ".jsonl") {
		return time.Time{}, false
	}
	t, err := time.Parse(cutoffLayout, strings.TrimSuffix(path.Base(key), ".jsonl"))
	return t, err == nil
}

// Reader reads archived trade batches back from the bucket.
type Reader struct {
	client objectAPI
	bucket string
}

// NewReader creates a Reader for the client's bucket.
func NewReader(c *Client) *Reader {
	return &Reader{client: c.S3(), bucket: c.Bucket()}
}

// Batches lists every trade batch, oldest cutoff first. Objects under the
// archive prefix whose names are not cutoffs are ignored.
func (r *Reader) Batches(ctx context.Context) ([]domain.ArchiveBatch, error) {
	var batches []domain.ArchiveBatch

	paginator := s3.NewListObjectsV2Paginator(r.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(r.bucket),
		Prefix: aws.String(tradesPrefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3blob: list batches: %w", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			cutoff, ok := batchCutoff(key)
			if !ok {
				continue
			}
			batches = append(batches, domain.ArchiveBatch{
				Key:    key,
				Cutoff: cutoff,
				Size:   aws.ToInt64(obj.Size),
			})
		}
	}

	sort.Slice(batches, func(i, j int) bool { return batches[i].Cutoff.Before(batches[j].Cutoff) })
	return batches, nil
}

// ReadTrades downloads one batch and decodes it. A missing object is
// domain.ErrNotFound.
func (r *Reader) ReadTrades(ctx context.Context, key string) ([]domain.TradeEvent, error) {
	out, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("s3blob: get %s: %w", key, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("s3blob: get %s: %w", key, err)
	}
	defer out.Body.Close()

	trades, err := decodeTrades(out.Body)
	if err != nil {
		return nil, fmt.Errorf("s3blob: decode %s: %w", key, err)
	}
	return trades, nil
}

func decodeTrades(r io.Reader) ([]domain.TradeEvent, error) {
	var trades []domain.TradeEvent
	dec := json.NewDecoder(r)
	for {
		var t domain.TradeEvent
		err := dec.Decode(&t)
		if errors.Is(err, io.EOF) {
			return trades, nil
		}
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", len(trades), err)
		}
		trades = append(trades, t)
	}
}

// isNotFound returns true when the error indicates the requested S3 object
// does not exist.
func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	// Some S3-compatible providers only return a bare 404.
	type httpResponseError interface {
		HTTPStatusCode() int
	}
	var httpErr httpResponseError
	return errors.As(err, &httpErr) && httpErr.HTTPStatusCode() == 404
}

var _ domain.TradeArchiveReader = (*Reader)(nil)
