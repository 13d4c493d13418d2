package loader

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"insightai/internal/domain"
)

func TestLoadRequiresExactlyOneSource(t *testing.T) {
	l := New(0)
	ctx := context.Background()

	_, err := l.Load(ctx, Source{})
	assert.ErrorIs(t, err, domain.ErrInvalidSource)

	_, err = l.Load(ctx, Source{Text: "hello", URL: "http://example.com"})
	assert.ErrorIs(t, err, domain.ErrInvalidSource)

	_, err = l.Load(ctx, Source{FilePath: "a.txt", URL: "http://example.com", Text: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidSource)
}

func TestLoadRawText(t *testing.T) {
	l := New(0)
	got, err := l.Load(context.Background(), Source{Text: "The sky is blue."})
	require.NoError(t, err)
	assert.Equal(t, "The sky is blue.", got)
}

func TestLoadTextFile(t *testing.T) {
	l := New(0)
	path := filepath.Join(t.TempDir(), "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte("plain file content"), 0o644))

	got, err := l.Load(context.Background(), Source{FilePath: path})
	require.NoError(t, err)
	assert.Equal(t, "plain file content", got)
}

func TestLoadLatin1File(t *testing.T) {
	l := New(0)
	path := filepath.Join(t.TempDir(), "doc.txt")
	// "café" in ISO-8859-1: é is a single 0xE9 byte.
	require.NoError(t, os.WriteFile(path, []byte{'c', 'a', 'f', 0xE9}, 0o644))

	got, err := l.Load(context.Background(), Source{FilePath: path})
	require.NoError(t, err)
	assert.Equal(t, "café", got)
}

func TestLoadBinaryFileRejected(t *testing.T) {
	l := New(0)
	path := filepath.Join(t.TempDir(), "blob.bin")
	require.NoError(t, os.WriteFile(path, []byte{0x00, 0x01, 0x02, 0xFF, 0x00}, 0o644))

	_, err := l.Load(context.Background(), Source{FilePath: path})
	assert.ErrorIs(t, err, domain.ErrUnsupportedContent)
}

func TestLoadMissingFile(t *testing.T) {
	l := New(0)
	_, err := l.Load(context.Background(), Source{FilePath: filepath.Join(t.TempDir(), "nope.txt")})
	assert.Error(t, err)
}

func TestLoadHTMLFile(t *testing.T) {
	l := New(0)
	path := filepath.Join(t.TempDir(), "page.html")
	doc := `<!DOCTYPE html><html><head><title>T</title>
<script>var hidden = "nope";</script>
<style>.x{color:red}</style></head>
<body><h1>Heading</h1><p>Visible paragraph.</p></body></html>`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	got, err := l.Load(context.Background(), Source{FilePath: path})
	require.NoError(t, err)
	assert.Contains(t, got, "Heading")
	assert.Contains(t, got, "Visible paragraph.")
	assert.NotContains(t, got, "hidden")
	assert.NotContains(t, got, "color:red")
}

func writeDocx(t *testing.T, path, documentXML string) {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, err := w.Create("word/document.xml")
	require.NoError(t, err)
	_, err = f.Write([]byte(documentXML))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func TestLoadDocxFile(t *testing.T) {
	l := New(0)
	path := filepath.Join(t.TempDir(), "doc.docx")
	writeDocx(t, path, `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p><w:r><w:t>The sky is blue.</w:t></w:r></w:p>
<w:p><w:r><w:t>Second</w:t></w:r><w:r><w:t xml:space="preserve"> paragraph.</w:t></w:r></w:p>
</w:body>
</w:document>`)

	got, err := l.Load(context.Background(), Source{FilePath: path})
	require.NoError(t, err)
	assert.Contains(t, got, "The sky is blue.")
	assert.Contains(t, got, "Second paragraph.")
	// Paragraphs come out on separate lines.
	lines := strings.Split(strings.TrimSpace(got), "\n")
	require.Len(t, lines, 2)
}

func TestLoadDocxWithoutBody(t *testing.T) {
	l := New(0)
	path := filepath.Join(t.TempDir(), "empty.docx")
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	_, err := w.Create("unrelated.txt")
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	_, err = l.Load(context.Background(), Source{FilePath: path})
	assert.ErrorIs(t, err, domain.ErrUnsupportedContent)
}

func TestLoadDocxNotAZip(t *testing.T) {
	l := New(0)
	path := filepath.Join(t.TempDir(), "fake.docx")
	require.NoError(t, os.WriteFile(path, []byte("not a zip archive"), 0o644))

	_, err := l.Load(context.Background(), Source{FilePath: path})
	assert.ErrorIs(t, err, domain.ErrUnsupportedContent)
}

func TestLoadLegacyDocRejected(t *testing.T) {
	l := New(0)
	path := filepath.Join(t.TempDir(), "old.doc")
	require.NoError(t, os.WriteFile(path, []byte{0xD0, 0xCF, 0x11, 0xE0}, 0o644))

	_, err := l.Load(context.Background(), Source{FilePath: path})
	assert.ErrorIs(t, err, domain.ErrUnsupportedContent)
}

func TestLoadURLPlainText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("remote text body"))
	}))
	defer srv.Close()

	l := New(0)
	got, err := l.Load(context.Background(), Source{URL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, "remote text body", got)
}

func TestLoadURLHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><body><p>From the web.</p><script>skip()</script></body></html>`))
	}))
	defer srv.Close()

	l := New(0)
	got, err := l.Load(context.Background(), Source{URL: srv.URL})
	require.NoError(t, err)
	assert.Contains(t, got, "From the web.")
	assert.NotContains(t, got, "skip()")
}

func TestLoadURLSniffsHTMLWithoutContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write([]byte(`<!DOCTYPE html><html><body>Sniffed.</body></html>`))
	}))
	defer srv.Close()

	l := New(0)
	got, err := l.Load(context.Background(), Source{URL: srv.URL})
	require.NoError(t, err)
	assert.Contains(t, got, "Sniffed.")
	assert.NotContains(t, got, "<body>")
}

func TestLoadURLOversizedBodyRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write(bytes.Repeat([]byte("a"), 100))
	}))
	defer srv.Close()

	l := New(0)
	l.maxFetch = 64
	_, err := l.Load(context.Background(), Source{URL: srv.URL})
	require.ErrorIs(t, err, domain.ErrUnsupportedContent)
	assert.ErrorContains(t, err, "exceeds 64 bytes")

	// At the cap exactly, the body passes through untruncated.
	l.maxFetch = 100
	got, err := l.Load(context.Background(), Source{URL: srv.URL})
	require.NoError(t, err)
	assert.Len(t, got, 100)
}

func TestLoadURLNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	l := New(0)
	_, err := l.Load(context.Background(), Source{URL: srv.URL})
	assert.Error(t, err)
}
