package storage

import (
	"bytes"
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// InviteArchive keeps a copy of every generated calendar file in object
// storage. Archiving is best-effort; the caller logs and moves on when a
// write fails.
type InviteArchive struct {
	client *minio.Client
	bucket string
}

// NewInviteArchive creates a MinIO-backed archive and ensures the bucket
// exists.
func NewInviteArchive(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*InviteArchive, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	archive := &InviteArchive{client: client, bucket: bucket}
	if err := archive.ensureBucket(context.Background()); err != nil {
		return nil, err
	}
	return archive, nil
}

func (a *InviteArchive) ensureBucket(ctx context.Context) error {
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// StoreICS uploads the calendar file under ics/<event_id>.ics
func (a *InviteArchive) StoreICS(ctx context.Context, eventID uuid.UUID, body []byte) error {
	objectName := fmt.Sprintf("ics/%s.ics", eventID)
	_, err := a.client.PutObject(ctx, a.bucket, objectName,
		bytes.NewReader(body), int64(len(body)),
		minio.PutObjectOptions{ContentType: "text/calendar"})
	if err != nil {
		return fmt.Errorf("failed to archive calendar file: %w", err)
	}
	return nil
}
