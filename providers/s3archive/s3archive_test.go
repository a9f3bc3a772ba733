package s3archive

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	objects map[string][]byte
}

func (f *fakeS3) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	if f.objects == nil {
		f.objects = map[string][]byte{}
	}
	f.objects[*params.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[*params.Key]
	if !ok {
		return nil, &testNotFound{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(string(data)))}, nil
}

type testNotFound struct{}

func (*testNotFound) Error() string { return "NoSuchKey" }

func TestStoreRoundTrip(t *testing.T) {
	fake := &fakeS3{}
	store := NewWithClient(fake, "audit-bucket", "phiaudit")
	ctx := context.Background()

	key := "audit-archive/000000000001-000000000010.jsonl.gz"
	require.NoError(t, store.Put(ctx, key, []byte("payload")))

	// Objects land under the configured prefix.
	_, ok := fake.objects["phiaudit/"+key]
	assert.True(t, ok)

	got, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), got)

	_, err = store.Get(ctx, "missing")
	assert.Error(t, err)
}

func TestStoreNoPrefix(t *testing.T) {
	fake := &fakeS3{}
	store := NewWithClient(fake, "audit-bucket", "")
	require.NoError(t, store.Put(context.Background(), "key", []byte("x")))
	_, ok := fake.objects["key"]
	assert.True(t, ok)
}
