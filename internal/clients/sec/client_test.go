package sec

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, serverURL string, opts ...ClientOption) *Client {
	t.Helper()
	base := []ClientOption{
		WithBaseURLs(serverURL, serverURL),
		WithCacheDir(t.TempDir()),
		WithRateLimit(1000),
	}
	client, err := New("test test@example.com", append(base, opts...)...)
	require.NoError(t, err)
	return client
}

func gzipBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestNew_RequiresUserAgent(t *testing.T) {
	_, err := New("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SEC_USER_AGENT")
}

func TestGet_SetsUserAgentHeader(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	data, err := client.Get(context.Background(), server.URL+"/thing", false)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(data))
	assert.Equal(t, "test test@example.com", gotUA)
}

func TestGet_GzipContentEncoding(t *testing.T) {
	body := []byte(`{"hello":"world"}`)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		w.Write(gzipBytes(t, body))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	data, err := client.Get(context.Background(), server.URL+"/doc.json", false)
	require.NoError(t, err)
	assert.Equal(t, body, data)
}

func TestGet_DeflateZlib(t *testing.T) {
	body := []byte("deflated payload")
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	_, err := zw.Write(body)
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "deflate")
		w.Write(buf.Bytes())
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	data, err := client.Get(context.Background(), server.URL+"/doc", false)
	require.NoError(t, err)
	assert.Equal(t, body, data)
}

func TestGet_RawDeflateFallback(t *testing.T) {
	body := []byte("raw deflate stream")
	var buf bytes.Buffer
	fw, err := flate.NewWriter(&buf, flate.DefaultCompression)
	require.NoError(t, err)
	_, err = fw.Write(body)
	require.NoError(t, err)
	require.NoError(t, fw.Close())

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "deflate")
		w.Write(buf.Bytes())
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	data, err := client.Get(context.Background(), server.URL+"/doc", false)
	require.NoError(t, err)
	assert.Equal(t, body, data)
}

func TestGet_GzipMagicSniffWithoutHeader(t *testing.T) {
	body := []byte("sniffed body")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// No Content-Encoding header; body is still gzip.
		w.Write(gzipBytes(t, body))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	data, err := client.Get(context.Background(), server.URL+"/doc", false)
	require.NoError(t, err)
	assert.Equal(t, body, data)
}

func TestGet_CorruptGzipIsFatal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		w.Write([]byte("not gzip at all"))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.Get(context.Background(), server.URL+"/doc", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decompress")
}

func TestGet_CacheHitSkipsNetwork(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Write([]byte("cached once"))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	url := server.URL + "/doc"

	first, err := client.Get(context.Background(), url, true)
	require.NoError(t, err)
	second, err := client.Get(context.Background(), url, true)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, requests)
}

func TestGet_LegacyGzipCacheEntry(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("cache hit should not reach the network")
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	url := server.URL + "/legacy"
	body := []byte("legacy entry")

	path := client.cachePath(url)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, gzipBytes(t, body), 0o644))

	data, err := client.Get(context.Background(), url, true)
	require.NoError(t, err)
	assert.Equal(t, body, data)
}

func TestGet_NotFoundIsAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.Get(context.Background(), server.URL+"/missing", false)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
}

func TestFetch_ArtifactBudget(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(bytes.Repeat([]byte("x"), 2048))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, WithByteBudgets(1024, 1<<20))
	_, err := client.Get(context.Background(), server.URL+"/big", false)

	var budgetErr *BudgetError
	require.ErrorAs(t, err, &budgetErr)
	assert.False(t, budgetErr.Cumulative)
	assert.Equal(t, int64(1024), budgetErr.Cap)
}

func TestFetch_CumulativeBudget(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(bytes.Repeat([]byte("x"), 700))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, WithByteBudgets(1024, 1000))

	_, err := client.Get(context.Background(), server.URL+"/one", false)
	require.NoError(t, err)

	_, err = client.Get(context.Background(), server.URL+"/two", false)
	var budgetErr *BudgetError
	require.ErrorAs(t, err, &budgetErr)
	assert.True(t, budgetErr.Cumulative)
}

func TestStats_TracksArchiveArtifacts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("artifact"))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	url := client.ArchiveURL("12345", "0000012345-24-000001", "report_htm.xml")
	_, err := client.Get(context.Background(), url, false)
	require.NoError(t, err)

	stats := client.Stats()
	assert.Equal(t, 1, stats.RequestCount)
	assert.Equal(t, int64(len("artifact")), stats.BytesDownloaded)
	assert.Equal(t, []string{"report_htm.xml"}, stats.ArtifactsByFiling["000001234524000001"])
}

func TestArchiveURL(t *testing.T) {
	client := newTestClient(t, "https://example.test")
	url := client.ArchiveURL("0000012345", "0000012345-24-000001", "index.json")
	assert.Equal(t, "https://example.test/Archives/edgar/data/12345/000001234524000001/index.json", url)
}

func TestGetJSON_DecodeError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	var out map[string]any
	err := client.GetJSON(context.Background(), server.URL+"/doc.json", false, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode JSON")
}
