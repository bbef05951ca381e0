package objectstore_test

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

	"github.com/playperu/expedition/internal/objectstore"
)

func TestNormalizeKey(t *testing.T) {
	tests := map[string]string{
		"maps/base/H8.png":    "maps/base/H8.png",
		"/maps//base/H8.png":  "maps/base/H8.png",
		`maps\fog\H8.png`:     "maps/fog/H8.png",
		"../etc/passwd":       "",
		"maps/../../x":        "",
		"  ":                  "",
	}
	for in, want := range tests {
		assert.Equal(t, want, objectstore.NormalizeKey(in), in)
	}
}

func TestContentKeyIsStable(t *testing.T) {
	a := objectstore.ContentKey("uploads/P1", []byte("drawing"), "png")
	b := objectstore.ContentKey("uploads/P1", []byte("drawing"), ".png")
	c := objectstore.ContentKey("uploads/P1", []byte("other"), "png")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.True(t, strings.HasPrefix(a, "uploads/P1/"))
	assert.True(t, strings.HasSuffix(a, ".png"))
}

func TestFSRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := objectstore.NewFS(t.TempDir(), "/assets")
	require.NoError(t, err)

	url, err := s.Put(ctx, "maps/base/H8.png", "image/png", []byte("png"))
	require.NoError(t, err)
	assert.Equal(t, "/assets/maps/base/H8.png", url)

	got, err := s.Get(ctx, "maps/base/H8.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("png"), got)

	key, ok := s.KeyFromURL(url)
	require.True(t, ok)
	assert.Equal(t, "maps/base/H8.png", key)

	_, ok = s.KeyFromURL("https://cdn.example.com/maps/base/H8.png")
	assert.False(t, ok)

	_, err = s.Get(ctx, "maps/base/A1.png")
	assert.ErrorIs(t, err, objectstore.ErrNotFound)

	_, err = s.Put(ctx, "../escape.png", "image/png", []byte("x"))
	assert.Error(t, err)
}

func TestFSHandlerServesFiles(t *testing.T) {
	s, err := objectstore.NewFS(t.TempDir(), "/assets")
	require.NoError(t, err)
	_, err = s.Put(context.Background(), "maps/fog/H8.png", "image/png", []byte("fog"))
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/assets/maps/fog/H8.png", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "fog", rec.Body.String())
}

type fakeBucket struct {
	mu      sync.Mutex
	objects map[string][]byte
	auth    []string
}

func (b *fakeBucket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.auth = append(b.auth, r.Header.Get("Authorization"))
	if r.Header.Get("x-amz-content-sha256") == "" || r.Header.Get("x-amz-date") == "" {
		http.Error(w, "unsigned", http.StatusForbidden)
		return
	}
	switch r.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		b.objects[r.URL.Path] = body
	case http.MethodGet:
		body, ok := b.objects[r.URL.Path]
		if !ok {
			http.Error(w, "<Error><Code>NoSuchKey</Code></Error>", http.StatusNotFound)
			return
		}
		w.Write(body)
	}
}

func TestS3PutGet(t *testing.T) {
	bucket := &fakeBucket{objects: map[string][]byte{}}
	srv := httptest.NewServer(bucket)
	defer srv.Close()

	s, err := objectstore.NewS3(objectstore.S3Config{
		Endpoint:        srv.URL,
		Bucket:          "maps",
		AccessKeyID:     "AKID",
		SecretAccessKey: "secret",
		PublicURL:       "https://cdn.example.com",
	})
	require.NoError(t, err)

	ctx := context.Background()
	url, err := s.Put(ctx, "uploads/P1/H8 path.png", "image/png", []byte("drawn"))
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/uploads/P1/H8%20path.png", url)
	assert.Contains(t, bucket.objects, "/maps/uploads/P1/H8 path.png")

	require.NotEmpty(t, bucket.auth)
	assert.True(t, strings.HasPrefix(bucket.auth[0], "AWS4-HMAC-SHA256 Credential=AKID/"))
	assert.Contains(t, bucket.auth[0], "/auto/s3/aws4_request")

	got, err := s.Get(ctx, "uploads/P1/H8 path.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("drawn"), got)

	key, ok := s.KeyFromURL(url)
	require.True(t, ok)
	assert.Equal(t, "uploads/P1/H8 path.png", key)

	_, err = s.Get(ctx, "missing.png")
	assert.ErrorIs(t, err, objectstore.ErrNotFound)
}

func TestNewS3RequiresCredentials(t *testing.T) {
	_, err := objectstore.NewS3(objectstore.S3Config{Endpoint: "r2.example.com", Bucket: "maps"})
	assert.Error(t, err)
}
