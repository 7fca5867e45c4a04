package resultsink

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/qinqiang2000/redflush-matcher/model"
)

// S3ArchiveSink decorates a CSVSink: after a CSV write succeeds, it
// best-effort-uploads the same file to S3-compatible storage for
// long-term audit retention. Archival failures are logged, never
// surfaced — the CSV spool on local disk remains the durable record.
type S3ArchiveSink struct {
	Inner  *CSVSink
	Client *s3.Client
	Bucket string
	Logger *slog.Logger
}

// NewS3ArchiveSink builds the S3 client the way rxtech-lab's upload
// service does: load the default AWS config, then open a bucket-scoped
// client on top of it.
func NewS3ArchiveSink(ctx context.Context, inner *CSVSink, bucket, region string, logger *slog.Logger) (*S3ArchiveSink, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &S3ArchiveSink{
		Inner:  inner,
		Client: s3.NewFromConfig(awsCfg),
		Bucket: bucket,
		Logger: logger,
	}, nil
}

func (s *S3ArchiveSink) Put(ctx context.Context, records []model.MatchResult) error {
	if err := s.Inner.Put(ctx, records); err != nil {
		return err
	}

	seen := make(map[int64]struct{})
	for _, r := range records {
		if _, ok := seen[r.BillID]; ok {
			continue
		}
		seen[r.BillID] = struct{}{}
		s.archive(ctx, r.BillID)
	}
	return nil
}

// OutputPathFor delegates to the wrapped CSVSink so callers can surface
// the on-disk path regardless of whether archival is enabled.
func (s *S3ArchiveSink) OutputPathFor(billID int64) string {
	return s.Inner.OutputPathFor(billID)
}

func (s *S3ArchiveSink) archive(ctx context.Context, billID int64) {
	path := s.Inner.OutputPathFor(billID)
	data, err := os.ReadFile(path)
	if err != nil {
		s.Logger.Warn("s3_archive_read_failed", "bill_id", billID, "path", path, "error", err)
		return
	}
	_, err = s.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(filepath.Base(path)),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		s.Logger.Warn("s3_archive_upload_failed", "bill_id", billID, "bucket", s.Bucket, "error", err)
	}
}
