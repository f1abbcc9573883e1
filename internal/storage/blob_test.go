package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedPut struct {
	method      string
	path        string
	contentType string
	body        string
}

func fakeS3(t *testing.T, status int) (*httptest.Server, func() []recordedPut) {
	t.Helper()
	var mu sync.Mutex
	var puts []recordedPut

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		puts = append(puts, recordedPut{
			method:      r.Method,
			path:        r.URL.Path,
			contentType: r.Header.Get("Content-Type"),
			body:        string(body),
		})
		mu.Unlock()
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	return srv, func() []recordedPut {
		mu.Lock()
		defer mu.Unlock()
		return append([]recordedPut(nil), puts...)
	}
}

func TestS3Store_Upload(t *testing.T) {
	srv, recorded := fakeS3(t, http.StatusOK)

	store, err := NewS3Store(S3Config{
		Endpoint:  srv.URL,
		Bucket:    "travel-diary",
		AccessKey: "ak",
		SecretKey: "sk",
	})
	require.NoError(t, err)

	url, err := store.Upload(context.Background(), "Photo.JPG", []byte("jpeg-bytes"), "image/jpeg")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, srv.URL+"/travel-diary/"), url)
	assert.True(t, strings.HasSuffix(url, ".jpg"), url)

	puts := recorded()
	require.Len(t, puts, 1)
	assert.Equal(t, http.MethodPut, puts[0].method)
	assert.True(t, strings.HasPrefix(puts[0].path, "/travel-diary/"), "path-style addressing")
	assert.Equal(t, "image/jpeg", puts[0].contentType)
	assert.Equal(t, "jpeg-bytes", puts[0].body)
}

func TestS3Store_UploadFailure(t *testing.T) {
	srv, _ := fakeS3(t, http.StatusForbidden)

	store, err := NewS3Store(S3Config{Endpoint: srv.URL, Bucket: "travel-diary", MaxRetries: 0})
	require.NoError(t, err)

	url, err := store.Upload(context.Background(), "a.png", []byte("x"), "image/png")
	assert.Error(t, err)
	assert.Empty(t, url)
}

func TestNewS3Store_RequiresBucket(t *testing.T) {
	_, err := NewS3Store(S3Config{Endpoint: "http://localhost:9000"})
	assert.Error(t, err)
}

func TestPublicURL_UsesPublicBase(t *testing.T) {
	store, err := NewS3Store(S3Config{
		Endpoint:      "http://minio:9000",
		Bucket:        "travel-diary",
		PublicBaseURL: "https://cdn.example.com/",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/travel-diary/abc.png", store.PublicURL("abc.png"))
}

func TestObjectKey(t *testing.T) {
	t.Parallel()
	a := ObjectKey("trip.MP4")
	b := ObjectKey("trip.MP4")
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasSuffix(a, ".mp4"))
	assert.Len(t, ObjectKey("noext"), 36)
}
