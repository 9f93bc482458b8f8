package local

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// HTTPDownloader fetches files over HTTP into a cache directory.
type HTTPDownloader struct {
	client   *http.Client
	cacheDir string
}

// NewHTTPDownloader creates a downloader writing into cacheDir. A nil client
// gets a default one with a generous timeout.
func NewHTTPDownloader(cacheDir string, client *http.Client) *HTTPDownloader {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Minute}
	}
	if cacheDir == "" {
		cacheDir = filepath.Join(os.TempDir(), "froyo-downloads")
	}
	return &HTTPDownloader{client: client, cacheDir: cacheDir}
}

// CacheDir returns the directory files are stored in.
func (d *HTTPDownloader) CacheDir() string {
	return d.cacheDir
}

// Download implements Downloader. The body is streamed to a temporary file
// which is renamed into place once the digest matches.
func (d *HTTPDownloader) Download(ctx context.Context, req Request) (string, error) {
	name, err := fileNameFor(req)
	if err != nil {
		return "", &DownloadError{URL: req.URL, Err: err}
	}

	if err := os.MkdirAll(d.cacheDir, 0o755); err != nil {
		return "", &DownloadError{URL: req.URL, Err: fmt.Errorf("failed to create cache directory: %w", err)}
	}
	dest := filepath.Join(d.cacheDir, name)

	log.Info().Str("url", req.URL).Str("dest", dest).Msg("Downloading file")
	start := time.Now()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return "", &DownloadError{URL: req.URL, Err: err}
	}

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return "", &DownloadError{URL: req.URL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &DownloadError{URL: req.URL, Err: fmt.Errorf("unexpected HTTP status %d", resp.StatusCode)}
	}

	tmp, err := os.CreateTemp(d.cacheDir, name+".*.part")
	if err != nil {
		return "", &DownloadError{URL: req.URL, Err: fmt.Errorf("failed to create file: %w", err)}
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	hasher := sha256.New()
	written, err := io.Copy(io.MultiWriter(tmp, hasher), resp.Body)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return "", &DownloadError{URL: req.URL, Err: fmt.Errorf("failed to write file: %w", err)}
	}

	if req.SHA256 != "" {
		actual := hex.EncodeToString(hasher.Sum(nil))
		if !strings.EqualFold(actual, req.SHA256) {
			return "", &DownloadError{URL: req.URL, Err: fmt.Errorf("checksum mismatch: expected %s, got %s", req.SHA256, actual)}
		}
	}

	if err := os.Rename(tmpName, dest); err != nil {
		return "", &DownloadError{URL: req.URL, Err: fmt.Errorf("failed to move file into place: %w", err)}
	}

	log.Info().
		Str("dest", dest).
		Int64("bytes", written).
		Dur("duration", time.Since(start)).
		Msg("Download completed")

	return dest, nil
}

func fileNameFor(req Request) (string, error) {
	if req.URL == "" {
		return "", fmt.Errorf("url is required")
	}
	if req.FileName != "" {
		return filepath.Base(req.FileName), nil
	}

	u, err := url.Parse(req.URL)
	if err != nil {
		return "", fmt.Errorf("invalid url: %w", err)
	}
	base := path.Base(u.Path)
	if base == "" || base == "/" || base == "." {
		return "", fmt.Errorf("cannot derive a file name from %s", req.URL)
	}
	return base, nil
}
