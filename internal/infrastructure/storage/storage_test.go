package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/garyjia/expense-audit/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLocalFileStorage(t *testing.T) {
	store := NewLocalFileStorage(t.TempDir(), zap.NewNop())
	ctx := context.Background()
	key := DocumentKey("b-1", "i-1", "发票.pdf")

	require.NoError(t, store.Save(ctx, key, []byte("%PDF-1.7")))
	assert.True(t, store.Exists(ctx, key))

	data, err := store.Read(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7", string(data))

	require.NoError(t, store.Delete(ctx, key))
	assert.False(t, store.Exists(ctx, key))
	require.NoError(t, store.Delete(ctx, key))

	_, err = store.Read(ctx, key)
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestLocalFileStorage_RejectsEscapingKeys(t *testing.T) {
	store := NewLocalFileStorage(t.TempDir(), zap.NewNop())
	ctx := context.Background()

	for _, key := range []string{"../outside.txt", "a/../../outside.txt", ""} {
		err := store.Save(ctx, key, []byte("x"))
		assert.ErrorIs(t, err, entity.ErrInvalidInput, key)
		assert.False(t, store.Exists(ctx, key), key)
	}
}

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[r.URL.Path] = body
		w.WriteHeader(http.StatusOK)
	case http.MethodGet, http.MethodHead:
		body, ok := f.objects[r.URL.Path]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			if r.Method == http.MethodGet {
				io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`)
			}
			return
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodGet {
			w.Write(body)
		}
	case http.MethodDelete:
		delete(f.objects, r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func TestS3Storage(t *testing.T) {
	fake := &fakeS3{objects: make(map[string][]byte)}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	ctx := context.Background()
	store, err := NewS3Storage(ctx, S3Config{
		Bucket:    "invoices",
		Region:    "us-east-1",
		Endpoint:  srv.URL,
		AccessKey: "test",
		SecretKey: "test",
		Prefix:    "/archive/",
	}, zap.NewNop())
	require.NoError(t, err)

	key := "batches/b-1/i-1_receipt.png"
	assert.Equal(t, "s3://invoices/archive/batches/b-1/i-1_receipt.png", store.Location(key))

	require.NoError(t, store.Save(ctx, key, []byte("png-bytes")))
	assert.Contains(t, fake.objects, "/invoices/archive/batches/b-1/i-1_receipt.png")
	assert.True(t, store.Exists(ctx, key))

	data, err := store.Read(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))

	require.NoError(t, store.Delete(ctx, key))
	assert.False(t, store.Exists(ctx, key))

	_, err = store.Read(ctx, key)
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestNewS3Storage_RequiresBucket(t *testing.T) {
	_, err := NewS3Storage(context.Background(), S3Config{}, zap.NewNop())
	assert.Error(t, err)
}
