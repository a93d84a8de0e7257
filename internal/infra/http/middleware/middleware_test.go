package middleware

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		name string
		path string
		want string
	}{
		{"root", "/", "/"},
		{"static path", "/api/v1/scans", "/api/v1/scans"},
		{"uuid segment", "/api/v1/scans/550e8400-e29b-41d4-a716-446655440000", "/api/v1/scans/{id}"},
		{"uuid mid path", "/api/v1/findings/550e8400-e29b-41d4-a716-446655440000/history", "/api/v1/findings/{id}/history"},
		{"numeric segment", "/api/v1/projects/42/scans", "/api/v1/projects/{id}/scans"},
		{"version not an id", "/api/v1/policies", "/api/v1/policies"},
		{"non id word", "/api/v1/scans/latest", "/api/v1/scans/latest"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizePath(tt.path))
		})
	}
}

func TestIsID(t *testing.T) {
	assert.True(t, isID("550e8400-e29b-41d4-a716-446655440000"))
	assert.True(t, isID("12345"))
	assert.False(t, isID(""))
	assert.False(t, isID("scans"))
	assert.False(t, isID("550e8400e29b41d4a716446655440000"))
	assert.False(t, isID("123456789012345678901"), "over 20 digits is not treated as an id")
}

func TestGetClientIP(t *testing.T) {
	newRequest := func(remoteAddr string, headers map[string]string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = remoteAddr
		for k, v := range headers {
			r.Header.Set(k, v)
		}
		return r
	}

	t.Run("x-real-ip wins", func(t *testing.T) {
		r := newRequest("10.0.0.1:1234", map[string]string{
			"X-Real-IP":       "203.0.113.7",
			"X-Forwarded-For": "198.51.100.1",
		})
		assert.Equal(t, "203.0.113.7", getClientIP(r))
	})

	t.Run("first forwarded address", func(t *testing.T) {
		r := newRequest("10.0.0.1:1234", map[string]string{
			"X-Forwarded-For": "198.51.100.1, 10.0.0.2",
		})
		assert.Equal(t, "198.51.100.1", getClientIP(r))
	})

	t.Run("remote addr without port", func(t *testing.T) {
		r := newRequest("10.0.0.1:1234", nil)
		assert.Equal(t, "10.0.0.1", getClientIP(r))
	})
}

func TestDecompress(t *testing.T) {
	echo := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		w.Write(body)
	})

	gzipped := func(t *testing.T, data []byte) []byte {
		t.Helper()
		var buf bytes.Buffer
		gw := gzip.NewWriter(&buf)
		_, err := gw.Write(data)
		require.NoError(t, err)
		require.NoError(t, gw.Close())
		return buf.Bytes()
	}

	t.Run("gzip body decompressed", func(t *testing.T) {
		payload := []byte(`{"SchemaVersion":2,"ArtifactName":"app:1.0"}`)

		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(gzipped(t, payload)))
		req.Header.Set("Content-Encoding", "gzip")
		rec := httptest.NewRecorder()

		Decompress(nil)(echo).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, payload, rec.Body.Bytes())
	})

	t.Run("identity passes through", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("plain"))
		rec := httptest.NewRecorder()

		Decompress(nil)(echo).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "plain", rec.Body.String())
	})

	t.Run("unsupported encoding rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("x"))
		req.Header.Set("Content-Encoding", "br")
		rec := httptest.NewRecorder()

		Decompress(nil)(echo).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	})

	t.Run("corrupt gzip rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("not gzip at all"))
		req.Header.Set("Content-Encoding", "gzip")
		rec := httptest.NewRecorder()

		Decompress(nil)(echo).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("ratio bomb rejected", func(t *testing.T) {
		// Highly repetitive input compresses far past the ratio cap.
		bomb := gzipped(t, bytes.Repeat([]byte("a"), 1<<20))

		cfg := DefaultDecompressConfig()
		cfg.MaxCompressionRatio = 10

		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(bomb))
		req.Header.Set("Content-Encoding", "gzip")
		rec := httptest.NewRecorder()

		Decompress(cfg)(echo).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("get skipped", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Content-Encoding", "gzip")
		rec := httptest.NewRecorder()

		Decompress(nil)(echo).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
