package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/alanyoungcy/sportsxchange/internal/domain"
)

// minPartSize is the minimum allowed part size for S3 multipart uploads (5 MiB).
const minPartSize int64 = 5 * 1024 * 1024

const jsonlType = "application/x-ndjson"

// objectAPI is the part of the S3 client the archive uses.
type objectAPI interface {
	manager.UploadAPIClient
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Writer uploads trade batches as newline-delimited JSON.
type Writer struct {
	client objectAPI
	bucket string
}

// NewWriter creates a Writer for the client's bucket.
func NewWriter(c *Client) *Writer {
	return &Writer{client: c.S3(), bucket: c.Bucket()}
}

// WriteTrades encodes trades one JSON object per line and uploads them to
// key. Batches above minPartSize go through the multipart uploader.
func (w *Writer) WriteTrades(ctx context.Context, key string, trades []domain.TradeEvent) error {
	var buf bytes.Buffer
	if err := encodeTrades(&buf, trades); err != nil {
		return fmt.Errorf("s3blob: encode %s: %w", key, err)
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(w.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String(jsonlType),
	}
	if int64(buf.Len()) <= minPartSize {
		if _, err := w.client.PutObject(ctx, input); err != nil {
			return fmt.Errorf("s3blob: put %s: %w", key, err)
		}
		return nil
	}

	uploader := manager.NewUploader(w.client, func(u *manager.Uploader) {
		u.PartSize = minPartSize
	})
	if _, err := uploader.Upload(ctx, input); err != nil {
		return fmt.Errorf("s3blob: multipart upload %s: %w", key, err)
	}
	return nil
}

func encodeTrades(w io.Writer, trades []domain.TradeEvent) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for i, t := range trades {
		if err := enc.Encode(t); err != nil {
			return fmt.Errorf("trade %d (%s): %w", i, t.ID, err)
		}
	}
	return nil
}

var _ domain.TradeArchiveWriter = (*Writer)(nil)
