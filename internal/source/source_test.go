package source

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"go-etl-pipeline/internal/dataset"
)

func TestFromValuesInfersKinds(t *testing.T) {
	ds := fromValues(
		[]string{"product_id", "rating", "mixed", "name", "empty"},
		[][]interface{}{
			{int64(1), float64(4.5), int64(3), "a", nil},
			{int64(2), int64(4), "x", nil, nil},
		},
	)

	kinds := map[string]dataset.Kind{}
	for _, c := range ds.Columns {
		kinds[c.Name] = c.Kind
	}
	assert.Equal(t, dataset.Int, kinds["product_id"])
	assert.Equal(t, dataset.Float, kinds["rating"])
	assert.Equal(t, dataset.Text, kinds["mixed"])
	assert.Equal(t, dataset.Text, kinds["empty"])

	assert.Equal(t, float64(4), ds.Value(1, "rating"))
	assert.Equal(t, "3", ds.Value(0, "mixed"))
	assert.Nil(t, ds.Value(1, "name"))
}

func TestMarketingSourceMissingFile(t *testing.T) {
	src := &MarketingSource{Path: filepath.Join(t.TempDir(), "absent.csv"), Logger: zap.NewNop()}
	_, err := src.Extract(context.Background())
	assert.True(t, errors.Is(err, ErrNoData))
}

func TestMarketingSourceReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pricing.csv")
	content := ",name,prices.shipping\n0,TV,USD 25.00\n1,Radio,\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	ds, err := (&MarketingSource{Path: path, Logger: zap.NewNop()}).Extract(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Unnamed: 0", "name", "prices.shipping"}, ds.ColumnNames())
	assert.Equal(t, 2, ds.Len())
	assert.Nil(t, ds.Value(1, "prices.shipping"))
}

type fakeFetcher struct {
	pages    map[int][]string
	articles map[string]*Article
}

func (f *fakeFetcher) IndexLinks(_ context.Context, page int) ([]string, error) {
	links, ok := f.pages[page]
	if !ok {
		return nil, errors.New("index unavailable")
	}
	return links, nil
}

func (f *fakeFetcher) Article(_ context.Context, link string) (*Article, error) {
	a, ok := f.articles[link]
	if !ok {
		return nil, errors.New("article unavailable")
	}
	return a, nil
}

func newScrapingSource(t *testing.T, fetcher ContentFetcher, pages int) (*ScrapingSource, *[]time.Duration) {
	t.Helper()
	dir := t.TempDir()
	var delays []time.Duration
	return &ScrapingSource{
		Fetcher:  fetcher,
		Pages:    pages,
		RawPath:  filepath.Join(dir, "scraping", "raw.csv"),
		LogPath:  filepath.Join(dir, "scraping", "scraping.log"),
		MinDelay: 100 * time.Millisecond,
		MaxDelay: time.Second,
		Logger:   zap.NewNop(),
		Sleep: func(_ context.Context, d time.Duration) error {
			delays = append(delays, d)
			return nil
		},
		Rand: func() float64 { return 0.5 },
	}, &delays
}

func TestScrapingSkipsFailuresAndContinues(t *testing.T) {
	fetcher := &fakeFetcher{
		pages: map[int][]string{
			1: {"https://news/a", "https://news/broken", "https://news/b"},
			// page 2 fails entirely
			3: {"https://news/c"},
		},
		articles: map[string]*Article{
			"https://news/a": {Title: "A", Topic: "News", Link: "https://news/a"},
			"https://news/b": {Title: "B", Link: "https://news/b"},
			"https://news/c": {Title: "C, with comma", Link: "https://news/c"},
		},
	}
	src, delays := newScrapingSource(t, fetcher, 3)

	ds, err := src.Extract(context.Background())
	require.NoError(t, err)

	assert.Equal(t, ScrapingFields, ds.ColumnNames())
	require.Equal(t, 3, ds.Len())
	assert.Equal(t, "A", ds.Value(0, "judul"))
	assert.Equal(t, "News", ds.Value(0, "topik"))
	assert.Nil(t, ds.Value(1, "topik"))
	assert.Equal(t, "C, with comma", ds.Value(2, "judul"))

	// one delay per article attempt, including the failed one
	require.Len(t, *delays, 4)
	assert.Equal(t, 550*time.Millisecond, (*delays)[0])

	logData, err := os.ReadFile(src.LogPath)
	require.NoError(t, err)
	assert.Contains(t, string(logData), "https://news/broken")
	assert.Contains(t, string(logData), `"page":2`)
}

func TestScrapingAppendsAcrossRuns(t *testing.T) {
	fetcher := &fakeFetcher{
		pages:    map[int][]string{1: {"https://news/a"}},
		articles: map[string]*Article{"https://news/a": {Title: "A", Link: "https://news/a"}},
	}
	src, _ := newScrapingSource(t, fetcher, 1)

	_, err := src.Extract(context.Background())
	require.NoError(t, err)
	ds, err := src.Extract(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, ds.Len())

	raw, err := os.ReadFile(src.RawPath)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(raw), "judul,topik"))
}

func TestScrapingWithNothingSavedIsNoData(t *testing.T) {
	src, _ := newScrapingSource(t, &fakeFetcher{}, 2)
	_, err := src.Extract(context.Background())
	assert.True(t, errors.Is(err, ErrNoData))
}

func TestScrapingStopsOnCancel(t *testing.T) {
	fetcher := &fakeFetcher{
		pages:    map[int][]string{1: {"https://news/a", "https://news/b"}},
		articles: map[string]*Article{},
	}
	src, _ := newScrapingSource(t, fetcher, 1)
	src.Sleep = func(context.Context, time.Duration) error { return context.Canceled }

	_, err := src.Extract(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}
