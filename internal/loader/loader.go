package loader

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/transform"

	"insightai/internal/domain"
)

// Source names the content to ingest. Exactly one field must be set;
// the caller-contract violation of zero or several sources is reported,
// never resolved by precedence.
type Source struct {
	FilePath string
	URL      string
	Text     string
}

// Loader resolves a Source into plain text. Structured formats (PDF,
// Word, HTML) get format-aware extraction; other byte streams get
// best-effort charset detection before decoding.
type Loader struct {
	client   *http.Client
	maxFetch int64
}

// New creates a loader whose URL fetches are bounded by the timeout.
func New(timeout time.Duration) *Loader {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Loader{
		client:   &http.Client{Timeout: timeout},
		maxFetch: 32 << 20,
	}
}

// Load returns the text of the single supplied source.
func (l *Loader) Load(ctx context.Context, src Source) (string, error) {
	supplied := 0
	if src.FilePath != "" {
		supplied++
	}
	if src.URL != "" {
		supplied++
	}
	if src.Text != "" {
		supplied++
	}
	if supplied != 1 {
		return "", domain.ErrInvalidSource
	}

	switch {
	case src.Text != "":
		return src.Text, nil
	case src.URL != "":
		return l.loadURL(ctx, src.URL)
	default:
		return l.loadFile(src.FilePath)
	}
}

func (l *Loader) loadURL(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidSource, err)
	}
	res, err := l.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: status %s", rawURL, res.Status)
	}
	contentType := res.Header.Get("Content-Type")
	// Read one byte past the cap so an oversized body is an error, not a
	// silently truncated document.
	body, err := io.ReadAll(io.LimitReader(res.Body, l.maxFetch+1))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", rawURL, err)
	}
	if int64(len(body)) > l.maxFetch {
		return "", fmt.Errorf("%w: %s exceeds %d bytes", domain.ErrUnsupportedContent, rawURL, l.maxFetch)
	}
	if strings.Contains(contentType, "text/html") || looksLikeHTML(body) {
		return htmlText(bytes.NewReader(body))
	}
	return decodeText(body, contentType)
}

func (l *Loader) loadFile(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return pdfText(path)
	case ".docx":
		return docxText(path)
	case ".doc":
		// Legacy OLE .doc has no zip container; a converter is required.
		return "", fmt.Errorf("%w: legacy .doc, convert to .docx", domain.ErrUnsupportedContent)
	case ".html", ".htm":
		f, err := os.Open(path)
		if err != nil {
			return "", err
		}
		defer f.Close()
		return htmlText(f)
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return decodeText(data, "")
	}
}

func pdfText(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrUnsupportedContent, err)
	}
	defer f.Close()
	r, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrUnsupportedContent, err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrUnsupportedContent, err)
	}
	return buf.String(), nil
}

// docxText extracts the text of a .docx file. The format is a zip
// container; the body lives in word/document.xml, with runs of text in
// w:t elements grouped into w:p paragraphs.
func docxText(path string) (string, error) {
	archive, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrUnsupportedContent, err)
	}
	defer archive.Close()

	var doc *zip.File
	for _, f := range archive.File {
		if f.Name == "word/document.xml" {
			doc = f
			break
		}
	}
	if doc == nil {
		return "", fmt.Errorf("%w: no word/document.xml in archive", domain.ErrUnsupportedContent)
	}
	r, err := doc.Open()
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrUnsupportedContent, err)
	}
	defer r.Close()

	dec := xml.NewDecoder(r)
	var b strings.Builder
	inText := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("%w: %v", domain.ErrUnsupportedContent, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				b.WriteString("\t")
			case "br":
				b.WriteString("\n")
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				b.WriteString("\n")
			}
		case xml.CharData:
			if inText {
				b.Write(t)
			}
		}
	}
	return b.String(), nil
}

// decodeText sniffs the charset of a byte stream and decodes it to UTF-8.
func decodeText(data []byte, contentType string) (string, error) {
	enc, _, _ := charset.DetermineEncoding(data, contentType)
	decoded, _, err := transform.Bytes(enc.NewDecoder(), data)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrUnsupportedContent, err)
	}
	if !utf8.Valid(decoded) || bytes.ContainsRune(decoded, 0) {
		return "", fmt.Errorf("%w: binary content", domain.ErrUnsupportedContent)
	}
	return string(decoded), nil
}

func looksLikeHTML(data []byte) bool {
	head := bytes.ToLower(bytes.TrimSpace(data))
	if len(head) > 256 {
		head = head[:256]
	}
	return bytes.HasPrefix(head, []byte("<!doctype html")) || bytes.HasPrefix(head, []byte("<html"))
}

// htmlText extracts the visible text of an HTML document.
func htmlText(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrUnsupportedContent, err)
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript":
				return
			}
		}
		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				b.WriteString(text)
				b.WriteString("\n")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return b.String(), nil
}
