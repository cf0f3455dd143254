package notes

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"

	"github.com/crystaldolphin/murmur/internal/schema"
)

const (
	ingestUserAgent = "Mozilla/5.0 (compatible; murmur/1.0; +https://github.com/crystaldolphin/murmur)"
	maxRedirects    = 5
	maxPageBytes    = 4 << 20

	// DefaultChunkSize is the largest note, in runes, a page is split into.
	DefaultChunkSize = 1500
)

var (
	reScript   = regexp.MustCompile(`(?is)<script[\s\S]*?</script>`)
	reStyle    = regexp.MustCompile(`(?is)<style[\s\S]*?</style>`)
	reTags     = regexp.MustCompile(`<[^>]+>`)
	reSpaces   = regexp.MustCompile(`[ \t]+`)
	reNewlines = regexp.MustCompile(`\n{3,}`)
)

// IngestResult describes one ingested page.
type IngestResult struct {
	URL   string
	Title string
	Notes int
}

// Ingester fetches web pages, extracts their readable text and stores it as
// notes, one per chunk.
type Ingester struct {
	store      schema.NoteStore
	chunkSize  int
	httpClient *http.Client
	now        func() time.Time
}

// NewIngester creates an Ingester. chunkSize <= 0 means DefaultChunkSize.
func NewIngester(store schema.NoteStore, chunkSize int) *Ingester {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	client := &http.Client{
		Timeout: 30 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}
	return &Ingester{store: store, chunkSize: chunkSize, httpClient: client, now: time.Now}
}

// Ingest fetches rawURL and stores its text.
func (in *Ingester) Ingest(ctx context.Context, rawURL string) (IngestResult, error) {
	u, err := validateURL(rawURL)
	if err != nil {
		return IngestResult{}, fmt.Errorf("URL validation failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return IngestResult{}, err
	}
	req.Header.Set("User-Agent", ingestUserAgent)

	resp, err := in.httpClient.Do(req)
	if err != nil {
		return IngestResult{}, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return IngestResult{}, fmt.Errorf("fetch %s: HTTP %d", rawURL, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return IngestResult{}, fmt.Errorf("read %s: %w", rawURL, err)
	}

	title, text := extract(body, resp.Header.Get("Content-Type"), u)
	if title == "" {
		title = u.Host + u.Path
	}
	chunks := splitChunks(text, in.chunkSize)
	if len(chunks) == 0 {
		return IngestResult{}, fmt.Errorf("ingest %s: page has no readable text", rawURL)
	}

	stamp := in.now()
	for i, chunk := range chunks {
		noteTitle := title
		if len(chunks) > 1 {
			noteTitle = fmt.Sprintf("%s (part %d/%d)", title, i+1, len(chunks))
		}
		note := schema.Note{Title: noteTitle, Content: chunk, Timestamp: stamp}
		if err := in.store.Store(ctx, note); err != nil {
			return IngestResult{URL: rawURL, Title: title, Notes: i}, fmt.Errorf("store chunk %d: %w", i+1, err)
		}
	}
	slog.Info("notes: page ingested", "url", rawURL, "title", title, "notes", len(chunks))
	return IngestResult{URL: rawURL, Title: title, Notes: len(chunks)}, nil
}

func validateURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("only http/https allowed, got %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("missing domain in URL")
	}
	return u, nil
}

// extract returns the page title and plain text.
func extract(body []byte, ctype string, u *url.URL) (string, string) {
	if !strings.Contains(ctype, "text/html") && !isHTMLPrefix(body) {
		return "", normalizeWhitespace(string(body))
	}
	article, err := readability.FromReader(bytes.NewReader(body), u)
	if err != nil {
		slog.Debug("notes: readability failed, stripping tags", "url", u.String(), "err", err)
		return "", stripHTMLTags(string(body))
	}
	return strings.TrimSpace(article.Title), normalizeWhitespace(article.TextContent)
}

// splitChunks packs paragraphs into chunks of at most size runes. A single
// paragraph longer than size is cut on rune boundaries.
func splitChunks(text string, size int) []string {
	var (
		chunks []string
		cur    strings.Builder
	)
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			chunks = append(chunks, s)
		}
		cur.Reset()
	}
	for _, para := range strings.Split(text, "\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		runes := []rune(para)
		for len(runes) > size {
			flush()
			chunks = append(chunks, string(runes[:size]))
			runes = runes[size:]
		}
		para = string(runes)
		if cur.Len() > 0 && len([]rune(cur.String()))+1+len(runes) > size {
			flush()
		}
		if cur.Len() > 0 {
			cur.WriteString("\n")
		}
		cur.WriteString(para)
	}
	flush()
	return chunks
}

func isHTMLPrefix(b []byte) bool {
	prefix := strings.ToLower(strings.TrimSpace(string(b[:min(256, len(b))])))
	return strings.HasPrefix(prefix, "<!doctype") || strings.HasPrefix(prefix, "<html")
}

func stripHTMLTags(text string) string {
	text = reScript.ReplaceAllString(text, "")
	text = reStyle.ReplaceAllString(text, "")
	text = reTags.ReplaceAllString(text, "")
	return normalizeWhitespace(text)
}

func normalizeWhitespace(text string) string {
	text = reSpaces.ReplaceAllString(text, " ")
	text = reNewlines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
