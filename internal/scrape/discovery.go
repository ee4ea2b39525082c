package scrape

import (
	"context"
	"fmt"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/ekenbil/vehicle-sync/internal/fetch"
)

// LinkDiscovery walks a paginated listing and collects every detail-page
// link in page order.
type LinkDiscovery struct {
	fetcher fetch.Fetcher
	logger  *zap.Logger
}

func NewLinkDiscovery(fetcher fetch.Fetcher, logger *zap.Logger) *LinkDiscovery {
	return &LinkDiscovery{fetcher: fetcher, logger: logger}
}

// Discover fetches rootURL, counts pagination links to learn the page count
// (a listing without pagination markup is a single page), then fetches pages
// 2..N via a Page query parameter. Losing the first page is fatal because the
// selectors cannot even be resolved; losing a later page only loses its items,
// so the page is skipped and discovery continues.
func (d *LinkDiscovery) Discover(ctx context.Context, rootURL, paginationSel, itemSel string) ([]string, error) {
	first, err := d.fetcher.Fetch(ctx, rootURL)
	if err != nil {
		return nil, fmt.Errorf("discover %s: %w", rootURL, err)
	}

	pageCount := first.Find(paginationSel).Length()
	if pageCount < 1 {
		pageCount = 1
	}
	d.logger.Info("discovered listing pages",
		zap.String("url", rootURL),
		zap.Int("pages", pageCount))

	links := collectLinks(first, itemSel)
	for page := 2; page <= pageCount; page++ {
		pageURL := fmt.Sprintf("%s?Page=%d", rootURL, page)
		doc, err := d.fetcher.Fetch(ctx, pageURL)
		if err != nil {
			d.logger.Warn("skipping unreachable listing page",
				zap.String("url", pageURL),
				zap.Error(err))
			continue
		}
		pageLinks := collectLinks(doc, itemSel)
		d.logger.Info("collected item links",
			zap.String("url", pageURL),
			zap.Int("count", len(pageLinks)))
		links = append(links, pageLinks...)
	}
	return links, nil
}

func collectLinks(doc *goquery.Document, itemSel string) []string {
	var links []string
	doc.Find(itemSel).Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok && href != "" {
			links = append(links, href)
		}
	})
	return links
}
