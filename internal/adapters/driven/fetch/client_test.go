package fetch

import (
	"bytes"
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchStreamsBodyToFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("id,name\n1,Widget\n"))
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "prod_response_0_abc.txt")
	c := NewClient(Options{})

	result, err := c.Fetch(context.Background(), srv.URL, dest)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, result.StatusCode)
	assert.False(t, result.Gzipped)
	assert.Empty(t, result.BodyPreview)

	body, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "id,name\n1,Widget\n", string(body))
}

func TestFetchDecompressesUnlabeledGzip(t *testing.T) {
	var compressed bytes.Buffer
	gz := gzip.NewWriter(&compressed)
	gz.Write([]byte("id,name\n1,Widget\n"))
	require.NoError(t, gz.Close())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Gzip bytes with no Content-Encoding header, as some feed
		// endpoints serve them.
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write(compressed.Bytes())
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "feed.txt")
	c := NewClient(Options{})

	result, err := c.Fetch(context.Background(), srv.URL, dest)
	require.NoError(t, err)
	assert.True(t, result.Gzipped)

	body, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "id,name\n1,Widget\n", string(body))
}

func TestFetchNon200ReturnsPreviewNotError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "feed.txt")
	c := NewClient(Options{})

	result, err := c.Fetch(context.Background(), srv.URL, dest)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadGateway, result.StatusCode)
	assert.Contains(t, result.BodyPreview, "upstream exploded")

	// No file is written for failed fetches.
	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr))
}

func TestFetchTransportErrorReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	c := NewClient(Options{Timeout: time.Second})
	_, err := c.Fetch(context.Background(), srv.URL, filepath.Join(t.TempDir(), "x.txt"))
	assert.Error(t, err)
}

func TestFetchHonorsContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	c := NewClient(Options{})
	_, err := c.Fetch(ctx, srv.URL, filepath.Join(t.TempDir(), "x.txt"))
	assert.Error(t, err)
}

func TestFetchInsecureTLS(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "feed.txt")

	// Default client rejects the self-signed certificate.
	_, err := NewClient(Options{}).Fetch(context.Background(), srv.URL, dest)
	assert.Error(t, err)

	result, err := NewClient(Options{InsecureTLS: true}).Fetch(context.Background(), srv.URL, dest)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, result.StatusCode)
}
