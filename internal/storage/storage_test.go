package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"writingstuff/pkg/apperror"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStoreRoundTrip(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "owner/doc.pdf", []byte("%PDF-1.4"), "application/pdf"))

	rc, err := store.Get(ctx, "owner/doc.pdf")
	require.NoError(t, err)
	body, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "%PDF-1.4", string(body))

	require.NoError(t, store.Delete(ctx, "owner/doc.pdf"))
	_, err = store.Get(ctx, "owner/doc.pdf")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	assert.ErrorIs(t, store.Delete(ctx, "owner/doc.pdf"), apperror.ErrNotFound)
}

func TestLocalStoreRejectsEscapingKeys(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	err = store.Put(context.Background(), "../outside.pdf", []byte("x"), "")
	assert.ErrorIs(t, err, apperror.ErrInvalidArgument)
}

type fakeS3 struct {
	objects map[string][]byte
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	b, _ := io.ReadAll(in.Body)
	f.objects[*in.Key] = b
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	b, ok := f.objects[*in.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(string(b)))}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, *in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3StoreMapsMissingKey(t *testing.T) {
	store := &S3Store{client: &fakeS3{objects: map[string][]byte{}}, bucket: "docs"}
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "k", []byte("data"), "application/pdf"))
	rc, err := store.Get(ctx, "k")
	require.NoError(t, err)
	rc.Close()

	require.NoError(t, store.Delete(ctx, "k"))
	_, err = store.Get(ctx, "k")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}
