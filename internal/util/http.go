package util

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// DownloadToFile executes req and streams a 200 response body into path.
// The body lands in a ".part" sibling first and is renamed into place only
// once fully written, so path never holds a truncated archive.
func DownloadToFile(client *http.Client, req *http.Request, path string) (int64, error) {
	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("http do request for %s: %w", req.URL.String(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("bad status '%s' fetching %s: %s", resp.Status, req.URL.String(), string(snippet))
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("create directory for %s: %w", path, err)
	}
	part := path + ".part"
	f, err := os.Create(part)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", part, err)
	}
	n, copyErr := io.Copy(f, resp.Body)
	if err := errors.Join(copyErr, f.Close()); err != nil {
		os.Remove(part)
		return n, fmt.Errorf("failed reading body from %s: %w", req.URL.String(), err)
	}
	if err := os.Rename(part, path); err != nil {
		os.Remove(part)
		return n, fmt.Errorf("finalise %s: %w", path, err)
	}
	return n, nil
}

// DefaultHTTPClient allows long transfers; product archives run to gigabytes.
func DefaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Minute}
}
