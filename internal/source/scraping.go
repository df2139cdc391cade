package source

import (
	"context"
	"encoding/csv"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"go-etl-pipeline/internal/dataset"
	"go-etl-pipeline/internal/logging"
	"go-etl-pipeline/internal/model"
)

// ScrapingFields is the header of the raw scraping file.
var ScrapingFields = []string{
	"judul", "topik", "sub_topik", "topik_pilihan", "tanggal_waktu_publish",
	"redaksi", "advetorial", "isi_berita", "link", "topik_pilihan_link",
}

// Article is one scraped news article. Empty fields were not found on the page.
type Article struct {
	Title           string
	Topic           string
	SubTopic        string
	ChosenTopic     string
	PublishedAt     string
	Editors         string
	Advertorial     string
	Body            string
	Link            string
	ChosenTopicLink string
}

func (a *Article) record() []string {
	return []string{
		a.Title, a.Topic, a.SubTopic, a.ChosenTopic, a.PublishedAt,
		a.Editors, a.Advertorial, a.Body, a.Link, a.ChosenTopicLink,
	}
}

// ContentFetcher retrieves index pages and articles of a news site.
type ContentFetcher interface {
	IndexLinks(ctx context.Context, page int) ([]string, error)
	Article(ctx context.Context, link string) (*Article, error)
}

// ScrapingSource crawls Pages index pages, appending every article to the raw
// file at RawPath, then returns the accumulated raw file.
type ScrapingSource struct {
	Fetcher  ContentFetcher
	Pages    int
	RawPath  string
	LogPath  string
	MinDelay time.Duration
	MaxDelay time.Duration
	Logger   *zap.Logger

	// Sleep and Rand default to a context-aware timer and math/rand.
	Sleep func(ctx context.Context, d time.Duration) error
	Rand  func() float64
}

// Extract runs the crawl. Failed pages and articles are logged and skipped.
func (s *ScrapingSource) Extract(ctx context.Context) (*dataset.Dataset, error) {
	logger := s.Logger
	if s.LogPath != "" {
		fileLogger, closeLog, err := logging.WithFile(s.Logger, s.LogPath)
		if err != nil {
			s.Logger.Warn("scraping run log unavailable", zap.String("path", s.LogPath), zap.Error(err))
		} else {
			logger = fileLogger
			defer closeLog()
		}
	}

	logger.Info("scraping begin", zap.Int("pages", s.Pages))
	saved := 0
	for page := 1; page <= s.Pages; page++ {
		links, err := s.Fetcher.IndexLinks(ctx, page)
		if err != nil {
			if ctx.Err() != nil {
				return nil, eris.Wrap(ctx.Err(), "scraping cancelled")
			}
			logger.Error("failed to scrape page", zap.Int("page", page), zap.Error(err))
			continue
		}

		for j, link := range links {
			if err := s.scrapeArticle(ctx, link); err != nil {
				logger.Error("failed to scrape article",
					zap.Int("page", page),
					zap.Int("link", j+1),
					zap.String("url", link),
					zap.Error(err))
			} else {
				saved++
			}
			if err := s.sleep(ctx, s.delay()); err != nil {
				return nil, eris.Wrap(err, "scraping cancelled")
			}
		}
	}
	logger.Info("scraping end", zap.Int("saved", saved))

	ds, err := readRawFile(s.RawPath)
	if err != nil {
		return nil, noData(logger, model.DomainScraping, err)
	}
	return ds, nil
}

func (s *ScrapingSource) scrapeArticle(ctx context.Context, link string) error {
	article, err := s.Fetcher.Article(ctx, link)
	if err != nil {
		return err
	}
	return appendRecord(s.RawPath, article.record())
}

// appendRecord appends one row to the raw file, writing the header first when
// the file is new or empty.
func appendRecord(path string, record []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "failed to create dir for %s", path)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return eris.Wrapf(err, "failed to open %s", path)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return eris.Wrapf(err, "failed to stat %s", path)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(ScrapingFields); err != nil {
			return eris.Wrap(err, "failed to write header")
		}
	}
	if err := w.Write(record); err != nil {
		return eris.Wrap(err, "failed to write article")
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return eris.Wrapf(err, "failed to flush %s", path)
	}
	return nil
}

func (s *ScrapingSource) delay() time.Duration {
	r := rand.Float64
	if s.Rand != nil {
		r = s.Rand
	}
	span := s.MaxDelay - s.MinDelay
	return s.MinDelay + time.Duration(r()*float64(span))
}

func (s *ScrapingSource) sleep(ctx context.Context, d time.Duration) error {
	if s.Sleep != nil {
		return s.Sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
