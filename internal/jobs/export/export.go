package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"

	"github.com/ivankudzin/modactions/internal/domain/model"
)

const exportBatchSize = 1000

type recordStore interface {
	ListRecordsBefore(ctx context.Context, cutoff string, limit int) ([]model.ActionRecord, error)
	DeleteRecordsBefore(ctx context.Context, cutoff string) (int64, error)
}

type uploader interface {
	Upload(ctx context.Context, objectKey string, data []byte) error
}

// Job archives terminal action records older than the retention window to
// object storage as CSV snapshots and prunes them from postgres afterwards.
// Records are only deleted after a successful upload.
type Job struct {
	records   recordStore
	uploader  uploader
	retention time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

func NewJob(records recordStore, up uploader, retention time.Duration, logger *zap.Logger) *Job {
	if retention <= 0 {
		retention = 90 * 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Job{
		records:   records,
		uploader:  up,
		retention: retention,
		now:       time.Now,
		logger:    logger,
	}
}

func (j *Job) Run(ctx context.Context) error {
	if j.records == nil || j.uploader == nil {
		return nil
	}

	cutoffTime := j.now().UTC().Add(-j.retention)
	cutoff := cutoffTime.Format(time.RFC3339)

	for {
		records, err := j.records.ListRecordsBefore(ctx, cutoff, exportBatchSize)
		if err != nil {
			return fmt.Errorf("list archivable action records: %w", err)
		}
		if len(records) == 0 {
			return nil
		}

		data, err := encodeCSV(records)
		if err != nil {
			return fmt.Errorf("encode action records csv: %w", err)
		}

		objectKey := archiveObjectKey(j.now().UTC())
		if err := j.uploader.Upload(ctx, objectKey, data); err != nil {
			return fmt.Errorf("upload action archive: %w", err)
		}

		// A partial batch means everything up to the cutoff is exported, so
		// prune the full window. A full batch may have more rows behind it,
		// so only prune what this batch covered.
		pruneBefore := cutoff
		fullBatch := len(records) == exportBatchSize
		if fullBatch {
			pruneBefore = records[len(records)-1].CreatedAt.UTC().Format(time.RFC3339Nano)
		}

		deleted, err := j.records.DeleteRecordsBefore(ctx, pruneBefore)
		if err != nil {
			return fmt.Errorf("prune archived action records: %w", err)
		}

		j.logger.Info("action records archived",
			zap.String("object_key", objectKey),
			zap.Int("exported", len(records)),
			zap.Int64("pruned", deleted),
		)

		if !fullBatch {
			return nil
		}
	}
}

// RunLoop runs one export immediately and then on every tick until ctx is
// cancelled.
func (j *Job) RunLoop(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 6 * time.Hour
	}

	if err := j.Run(ctx); err != nil {
		j.logger.Warn("action export failed", zap.Error(err))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Warn("action export failed", zap.Error(err))
			}
		}
	}
}

func encodeCSV(records []model.ActionRecord) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{
		"action_id", "action_type", "group_id", "user_id", "initiated_by",
		"status", "success", "message", "error", "reason",
		"execution_time_ms", "retry_count", "created_at",
	}
	if err := w.Write(header); err != nil {
		return nil, err
	}

	for _, rec := range records {
		row := []string{
			rec.ActionID,
			string(rec.Type),
			strconv.FormatInt(rec.GroupID, 10),
			strconv.FormatInt(rec.UserID, 10),
			strconv.FormatInt(rec.InitiatedBy, 10),
			string(rec.Status),
			strconv.FormatBool(rec.Success),
			rec.Message,
			rec.Error,
			rec.Reason,
			strconv.FormatInt(rec.ExecutionTimeMS, 10),
			strconv.Itoa(rec.RetryCount),
			rec.CreatedAt.UTC().Format(time.RFC3339Nano),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}

	w.Flush()
	return buf.Bytes(), w.Error()
}

func archiveObjectKey(now time.Time) string {
	return fmt.Sprintf("actions/%04d/%02d/actions-%s.csv",
		now.Year(), now.Month(), now.Format("20060102T150405"))
}

// S3Uploader stores archives in a minio bucket.
type S3Uploader struct {
	client *minio.Client
	bucket string
}

func NewS3Uploader(client *minio.Client, bucket string) *S3Uploader {
	return &S3Uploader{client: client, bucket: bucket}
}

func (u *S3Uploader) Upload(ctx context.Context, objectKey string, data []byte) error {
	if u == nil || u.client == nil {
		return fmt.Errorf("s3 client is not initialized")
	}

	exists, err := u.client.BucketExists(ctx, u.bucket)
	if err != nil {
		return fmt.Errorf("check archive bucket: %w", err)
	}
	if !exists {
		if err := u.client.MakeBucket(ctx, u.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create archive bucket: %w", err)
		}
	}

	_, err = u.client.PutObject(ctx, u.bucket, objectKey,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "text/csv"})
	if err != nil {
		return fmt.Errorf("put archive object: %w", err)
	}
	return nil
}
