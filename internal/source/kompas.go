package source

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
)

const userAgent = "Mozilla/5.0 (compatible; go-etl-pipeline)"

// KompasFetcher scrapes the kompas.com article index and article pages.
type KompasFetcher struct {
	IndexURL string
	Client   *http.Client
}

// NewKompasFetcher returns a fetcher for indexURL with a request timeout.
func NewKompasFetcher(indexURL string, timeout time.Duration) *KompasFetcher {
	return &KompasFetcher{
		IndexURL: indexURL,
		Client:   &http.Client{Timeout: timeout},
	}
}

// PageURL returns the index URL of page.
func (f *KompasFetcher) PageURL(page int) (string, error) {
	u, err := url.Parse(f.IndexURL)
	if err != nil {
		return "", eris.Wrapf(err, "invalid index url %q", f.IndexURL)
	}
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// IndexLinks returns the article links listed on an index page.
func (f *KompasFetcher) IndexLinks(ctx context.Context, page int) ([]string, error) {
	pageURL, err := f.PageURL(page)
	if err != nil {
		return nil, err
	}
	doc, err := f.document(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	var links []string
	doc.Find("a.article-link").Each(func(_ int, a *goquery.Selection) {
		if href, ok := a.Attr("href"); ok && href != "" {
			links = append(links, href)
		}
	})
	return links, nil
}

// Article scrapes one article page.
func (f *KompasFetcher) Article(ctx context.Context, link string) (*Article, error) {
	doc, err := f.document(ctx, link)
	if err != nil {
		return nil, err
	}
	return parseArticle(doc, link)
}

func parseArticle(doc *goquery.Document, link string) (*Article, error) {
	a := &Article{Link: link}

	if adv := doc.Find("div.kcm__header__advertorial").First(); adv.Length() > 0 {
		a.Advertorial = adv.Text()
	}

	var topics []string
	var crumbErr error
	doc.Find("li.breadcrumb__item").Each(func(i int, li *goquery.Selection) {
		span := li.Find("span").First()
		if span.Length() == 0 {
			crumbErr = eris.Errorf("breadcrumb item %d has no label", i)
			return
		}
		topics = append(topics, span.Text())
	})
	if crumbErr != nil {
		return nil, crumbErr
	}
	if len(topics) > 1 {
		a.Topic = topics[1]
	}
	if len(topics) > 2 {
		a.SubTopic = topics[2]
	}

	if sub := doc.Find("div.topicSubtitle").First(); sub.Length() > 0 {
		anchor := sub.Find("a").First()
		if anchor.Length() == 0 {
			return nil, eris.New("topic subtitle has no link")
		}
		a.ChosenTopic = anchor.Text()
		a.ChosenTopicLink, _ = anchor.Attr("href")
	}

	if title := doc.Find("h1.read__title").First(); title.Length() > 0 {
		a.Title = title.Text()
	}

	if ts := doc.Find("div.read__time").First(); ts.Length() > 0 {
		parts := strings.Split(ts.Text(), " - ")
		if len(parts) < 2 {
			return nil, eris.Errorf("unexpected publish time %q", ts.Text())
		}
		a.PublishedAt = parts[1]
	}

	if credit := doc.Find("div.credit-title-name").First(); credit.Length() > 0 {
		var names []string
		credit.Find("h6").Each(func(_ int, h *goquery.Selection) {
			names = append(names, h.Text())
		})
		a.Editors = strings.Join(names, " ")
	}

	if content := doc.Find("div.read__content").First(); content.Length() > 0 {
		var paragraphs []string
		content.Find("p").Each(func(_ int, p *goquery.Selection) {
			paragraphs = append(paragraphs, p.Text())
		})
		a.Body = strings.Join(paragraphs, " ")
	}
	return a, nil
}

func (f *KompasFetcher) document(ctx context.Context, target string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to build request for %s", target)
	}
	req.Header.Set("User-Agent", userAgent)

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to fetch %s", target)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("fetch %s: unexpected status %d", target, resp.StatusCode)
	}
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to parse %s", target)
	}
	return doc, nil
}
