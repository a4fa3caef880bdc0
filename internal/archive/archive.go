// Package archive discovers product archives in the input directory and
// unpacks them next to the composites they produce.
package archive

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ErrUnsafePath marks an entry that would escape the extraction directory.
var ErrUnsafePath = errors.New("archive entry escapes extraction directory")

// Stem is the archive's base name without its extension.
func Stem(archivePath string) string {
	base := filepath.Base(archivePath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ExtractDir is where Extract unpacks archivePath under outputDir.
func ExtractDir(outputDir, archivePath string) string {
	return filepath.Join(outputDir, Stem(archivePath))
}

// List returns the files directly inside inputDir with extension ext
// (case-insensitive), sorted for a stable processing order.
func List(inputDir, ext string) ([]string, error) {
	entries, err := os.ReadDir(inputDir)
	if err != nil {
		return nil, fmt.Errorf("read input directory %s: %w", inputDir, err)
	}
	var archives []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ext) {
			continue
		}
		archives = append(archives, filepath.Join(inputDir, e.Name()))
	}
	sort.Strings(archives)
	return archives, nil
}

// Extract unpacks every entry of the zip at archivePath into
// <outputDir>/<stem>/ and returns that directory. Existing files are
// overwritten. Entry failures are collected and returned together after the
// remaining entries have been attempted.
func Extract(ctx context.Context, archivePath, outputDir string, logger *slog.Logger) (string, error) {
	dest := ExtractDir(outputDir, archivePath)
	l := logger.With(slog.String("archive", filepath.Base(archivePath)), slog.String("dest", dest))
	start := time.Now()

	// Insecure entry names are rejected per entry by safeJoin below.
	zr, err := zip.OpenReader(archivePath)
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		return "", fmt.Errorf("open zip %s: %w", archivePath, err)
	}
	defer zr.Close()

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return "", fmt.Errorf("create extraction directory %s: %w", dest, err)
	}

	var extractErrs []error
	written := 0
	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			extractErrs = append(extractErrs, err)
			break
		}
		target, err := safeJoin(dest, f.Name)
		if err != nil {
			extractErrs = append(extractErrs, err)
			continue
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				extractErrs = append(extractErrs, fmt.Errorf("mkdir %s: %w", target, err))
			}
			continue
		}
		if err := extractFile(f, target); err != nil {
			extractErrs = append(extractErrs, err)
			continue
		}
		written++
	}

	l.Debug("Archive extracted.",
		slog.Int("files", written),
		slog.Int("errors", len(extractErrs)),
		slog.Duration("duration", time.Since(start).Round(time.Millisecond)))

	if err := errors.Join(extractErrs...); err != nil {
		return dest, fmt.Errorf("extract %s: %w", archivePath, err)
	}
	return dest, nil
}

func extractFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(target), err)
	}
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open entry %s: %w", f.Name, err)
	}
	out, err := os.Create(target)
	if err != nil {
		rc.Close()
		return fmt.Errorf("create %s: %w", target, err)
	}
	_, copyErr := io.Copy(out, rc)
	closeOutErr := out.Close()
	closeRcErr := rc.Close()
	if err := errors.Join(copyErr, closeOutErr, closeRcErr); err != nil {
		os.Remove(target)
		return fmt.Errorf("extract entry %s: %w", f.Name, err)
	}
	return nil
}

// safeJoin resolves name inside dest, rejecting absolute paths and ".."
// components that would land outside it.
func safeJoin(dest, name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	return filepath.Join(dest, clean), nil
}
