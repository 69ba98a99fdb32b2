package workflowinfra

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"path"
	"strings"

	"github.com/Abraxas-365/craftable/errx"
	"github.com/Abraxas-365/supportflow/pkg/kernel"
	"github.com/Abraxas-365/supportflow/workflow"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// S3API is the subset of the S3 client used by the store
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3AttachmentStore stores multifile attachments in an S3 bucket. The
// returned reference is the object key.
type S3AttachmentStore struct {
	client S3API
	bucket string
}

var _ workflow.AttachmentStore = (*S3AttachmentStore)(nil)

func NewS3AttachmentStore(client S3API, bucket string) *S3AttachmentStore {
	return &S3AttachmentStore{client: client, bucket: bucket}
}

func (s *S3AttachmentStore) Upload(
	ctx context.Context,
	tenantID kernel.TenantID,
	workflowID kernel.WorkflowID,
	file workflow.Attachment,
) (string, error) {
	// Buffer so the SDK can sign a seekable payload
	data, err := io.ReadAll(file.Body)
	if err != nil {
		return "", errx.Wrap(err, "failed to read attachment", errx.TypeInternal).
			WithDetail("file", file.Name)
	}

	key := objectKey(tenantID, workflowID, file.Name)
	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", errx.Wrap(err, "failed to upload attachment", errx.TypeExternal).
			WithDetail("bucket", s.bucket).
			WithDetail("key", key)
	}

	log.Printf("📎 Stored attachment %s (%d bytes)", key, len(data))
	return key, nil
}

func (s *S3AttachmentStore) Delete(ctx context.Context, ref string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(ref),
	})
	if err != nil {
		return errx.Wrap(err, "failed to delete attachment", errx.TypeExternal).
			WithDetail("bucket", s.bucket).
			WithDetail("key", ref)
	}
	return nil
}

func objectKey(tenantID kernel.TenantID, workflowID kernel.WorkflowID, name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		base = "file"
	}
	return fmt.Sprintf("tenants/%s/workflows/%s/%s-%s", tenantID, workflowID, uuid.NewString(), base)
}
