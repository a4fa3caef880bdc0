// Package downloader fetches product archives listed on HTTP index pages
// into the input directory.
package downloader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/brensch/s2composite/internal/config"
	"github.com/brensch/s2composite/internal/db"
	"github.com/brensch/s2composite/internal/util"
	"golang.org/x/net/html"
)

// UserAgent identifies fetch requests to archive mirrors.
const UserAgent = "s2composite/1.0 (Go-client)"

// EventLogger receives download events. *db.Recorder satisfies it.
type EventLogger interface {
	LogEvent(ctx context.Context, e db.Event) error
}

// Result counts the outcome of one Fetch call.
type Result struct {
	Discovered int
	Skipped    int
	Downloaded int
	Failed     int
}

// Fetcher downloads archives sequentially with one HTTP client.
type Fetcher struct {
	Client *http.Client
	Events EventLogger
	Logger *slog.Logger
}

func New(events EventLogger, logger *slog.Logger) *Fetcher {
	return &Fetcher{Client: util.DefaultHTTPClient(), Events: events, Logger: logger}
}

// DiscoverArchiveURLs scans every feed page for links ending in ext and
// returns their absolute, de-duplicated URLs. A failing feed is logged and
// joined into the error; the others are still scanned.
func (f *Fetcher) DiscoverArchiveURLs(ctx context.Context, feeds []string, ext string) ([]string, error) {
	var discoveryErr error
	var links []string

	for i, feed := range feeds {
		if ctx.Err() != nil {
			return nil, errors.Join(discoveryErr, ctx.Err())
		}
		l := f.Logger.With(slog.String("feed_url", feed), slog.Int("feed_num", i+1), slog.Int("total_feeds", len(feeds)))

		found, err := f.scanFeed(ctx, feed, ext)
		if err != nil {
			l.Warn("Skip: feed scan failed.", "error", err)
			discoveryErr = errors.Join(discoveryErr, err)
			continue
		}
		l.Debug("Feed check complete.", slog.Int("links", len(found)))
		links = append(links, found...)
	}

	// Every link is already absolute; this only de-duplicates across feeds.
	unique, _ := util.ResolveLinks(&url.URL{}, links)
	return unique, discoveryErr
}

func (f *Fetcher) scanFeed(ctx context.Context, feed, ext string) ([]string, error) {
	base, err := url.Parse(feed)
	if err != nil {
		return nil, fmt.Errorf("parse base %s: %w", feed, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feed, nil)
	if err != nil {
		return nil, fmt.Errorf("create request %s: %w", feed, err)
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("discover GET %s: %w", feed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("discover status %s: %s", resp.Status, feed)
	}
	root, err := html.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("discover parse HTML %s: %w", feed, err)
	}

	resolved, bad := util.ResolveLinks(base, util.ParseLinks(root, ext))
	for _, b := range bad {
		f.Logger.Warn("Failed to resolve relative link.", "link", b, "feed_url", feed)
	}
	return resolved, nil
}

// Fetch downloads every archive linked from cfg.FeedURLs into cfg.InputDir.
// Archives already present are skipped unless force is set. Downloads run
// one at a time; a failure is recorded and the next archive is tried.
func (f *Fetcher) Fetch(ctx context.Context, cfg config.Config, force bool) (Result, error) {
	var res Result
	if len(cfg.FeedURLs) == 0 {
		return res, errors.New("no feed URLs configured")
	}

	f.Logger.Info("Discovering archives...", slog.Int("feeds", len(cfg.FeedURLs)))
	urls, finalErr := f.DiscoverArchiveURLs(ctx, cfg.FeedURLs, cfg.ArchiveExt)
	if ctx.Err() != nil {
		return res, errors.Join(finalErr, ctx.Err())
	}
	res.Discovered = len(urls)
	f.Logger.Info("Discovery complete.", slog.Int("archives", res.Discovered))

	for i, u := range urls {
		if ctx.Err() != nil {
			f.Logger.Warn("Download cancelled.")
			return res, errors.Join(finalErr, ctx.Err())
		}
		l := f.Logger.With(slog.String("archive_url", u), slog.Int("archive_num", i+1), slog.Int("total", len(urls)))

		dest, err := Destination(cfg.InputDir, u)
		if err != nil {
			l.Error("Cannot name download.", "error", err)
			finalErr = errors.Join(finalErr, err)
			res.Failed++
			continue
		}
		if !force {
			if _, err := os.Stat(dest); err == nil {
				l.Debug("Archive already present, skipping.", slog.String("path", dest))
				f.record(ctx, db.Event{Filename: u, FileType: db.FileTypeArchive, Event: db.EventSkipDownload, OutputPath: dest})
				res.Skipped++
				continue
			}
		}

		if err := f.download(ctx, l, u, dest); err != nil {
			finalErr = errors.Join(finalErr, fmt.Errorf("archive %s: %w", u, err))
			res.Failed++
			continue
		}
		res.Downloaded++
	}

	f.Logger.Info("Fetch finished.",
		slog.Int("discovered", res.Discovered),
		slog.Int("downloaded", res.Downloaded),
		slog.Int("skipped", res.Skipped),
		slog.Int("failed", res.Failed))
	return res, finalErr
}

func (f *Fetcher) download(ctx context.Context, l *slog.Logger, archiveURL, dest string) error {
	start := time.Now()
	l.Info("Starting download.", slog.String("output_path", dest))
	f.record(ctx, db.Event{Filename: archiveURL, FileType: db.FileTypeArchive, Event: db.EventDownloadStart, OutputPath: dest})

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, archiveURL, nil)
	if err == nil {
		req.Header.Set("User-Agent", UserAgent)
		req.Header.Set("Accept", "application/zip,application/octet-stream,*/*")
		var n int64
		n, err = util.DownloadToFile(f.Client, req, dest)
		if err == nil {
			elapsed := time.Since(start)
			f.record(ctx, db.Event{Filename: archiveURL, FileType: db.FileTypeArchive, Event: db.EventDownloadEnd, OutputPath: dest, Duration: &elapsed})
			l.Info("Download complete.", slog.Int64("bytes", n), slog.Duration("duration", elapsed.Round(time.Millisecond)))
			return nil
		}
	}

	elapsed := time.Since(start)
	f.record(ctx, db.Event{Filename: archiveURL, FileType: db.FileTypeArchive, Event: db.EventError, OutputPath: dest, Message: err.Error(), Duration: &elapsed})
	l.Error("Download failed.", "error", err, slog.Duration("duration", elapsed.Round(time.Millisecond)))
	return err
}

func (f *Fetcher) record(ctx context.Context, e db.Event) {
	if f.Events == nil {
		return
	}
	if err := f.Events.LogEvent(ctx, e); err != nil {
		f.Logger.Warn("Failed to record event.", "event", e.Event, "url", e.Filename, "error", err)
	}
}

// Destination is the file an archive URL downloads to: the last path
// segment of the URL inside inputDir.
func Destination(inputDir, archiveURL string) (string, error) {
	u, err := url.Parse(archiveURL)
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", archiveURL, err)
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return "", fmt.Errorf("no file name in %s", archiveURL)
	}
	return filepath.Join(inputDir, name), nil
}
