package persistence

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/forgeci/buildqueue/internal/queue"
)

// archiveDocument mirrors the queue package's private queue.xml shape
// closely enough to round-trip an archived snapshot; the exact layout
// is out of scope (spec 1), only that Load can read back what Save
// wrote.
type archiveDocument struct {
	XMLName xml.Name              `xml:"queue"`
	Items   []queue.PersistedEntry `xml:"item"`
}

// Archiver uploads point-in-time snapshots of the item set to S3, for
// controllers that want an off-host copy of crash-recovery state in
// addition to (not instead of) the local queue.xml.
type Archiver struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewArchiver builds an Archiver against bucket using the default AWS
// config resolution chain (environment, shared config, IMDS).
func NewArchiver(ctx context.Context, bucket, prefix string) (*Archiver, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("persistence: load AWS config: %w", err)
	}
	return &Archiver{client: s3.NewFromConfig(cfg), bucket: bucket, prefix: prefix}, nil
}

// Upload writes entries as an XML snapshot keyed by the given
// timestamp, so a controller can retain a rolling history of queue
// states rather than only the latest.
func (a *Archiver) Upload(ctx context.Context, entries []queue.PersistedEntry, at time.Time) error {
	var buf bytes.Buffer
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(archiveDocument{Items: entries}); err != nil {
		return fmt.Errorf("persistence: encode archive snapshot: %w", err)
	}

	key := fmt.Sprintf("%s/queue-%s.xml", a.prefix, at.UTC().Format("20060102T150405Z"))
	uploader := manager.NewUploader(a.client)
	_, err := uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: &a.bucket,
		Key:    &key,
		Body:   &buf,
	})
	if err != nil {
		return fmt.Errorf("persistence: upload archive snapshot: %w", err)
	}
	return nil
}
