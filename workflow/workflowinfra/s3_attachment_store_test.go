package workflowinfra

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/Abraxas-365/supportflow/workflow"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	objects map[string][]byte
	types   map[string]string
	failPut bool
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.failPut {
		return nil, errors.New("bucket unavailable")
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Key)] = data
	f.types[aws.ToString(in.Key)] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3AttachmentStoreUploadAndDelete(t *testing.T) {
	client := newFakeS3()
	store := NewS3AttachmentStore(client, "bucket")

	ref, err := store.Upload(context.Background(), "tenant-1", "wf-1", workflow.Attachment{
		Name:        "../../etc/invoice.pdf",
		ContentType: "application/pdf",
		Body:        strings.NewReader("%PDF"),
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, "tenants/tenant-1/workflows/wf-1/"))
	assert.True(t, strings.HasSuffix(ref, "-invoice.pdf"))
	assert.Equal(t, []byte("%PDF"), client.objects[ref])
	assert.Equal(t, "application/pdf", client.types[ref])

	require.NoError(t, store.Delete(context.Background(), ref))
	assert.Empty(t, client.objects)
}

func TestS3AttachmentStoreUploadFailure(t *testing.T) {
	client := newFakeS3()
	client.failPut = true
	store := NewS3AttachmentStore(client, "bucket")

	_, err := store.Upload(context.Background(), "tenant-1", "wf-1", workflow.Attachment{Name: "a.txt", Body: strings.NewReader("x")})
	assert.Error(t, err)
}
