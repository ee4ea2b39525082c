package scrape

import (
	"github.com/PuerkitoBio/goquery"

	"github.com/ekenbil/vehicle-sync/internal/domain"
)

// Selectors fixed by the source site's detail-page markup.
const (
	selTitle      = ".vehicle-detail-title"
	selPrice      = "#vehicle-details .vehicle-detail-price .car-price-details"
	selDetailList = "div.vehicle-detail-headline .object-info-box dl"
	selCarfax     = "#extended-carfax-details .extended-carfax-details-headline a"
	selAdditional = ".vehicle-detail-additional-detail > .additional-vehicle-data > ul > li > div"
	selImages     = "div.main-slideshow-container > ul.uk-slideshow > li"
	selFeatures   = "div.vehicle-detail-equipment-detail .equipment-box ul li"
)

// Parser turns one detail-page document into a Vehicle. It is a pure
// function of its inputs: no network, no persistence.
type Parser struct {
	fieldMap domain.FieldMap
}

func NewParser(fieldMap domain.FieldMap) *Parser {
	return &Parser{fieldMap: fieldMap}
}

// Parse extracts a Vehicle from doc. uid is the relative URL path the page
// was fetched from. Missing nodes yield empty values, never an error.
func (p *Parser) Parse(doc *goquery.Document, uid string) *domain.Vehicle {
	v := &domain.Vehicle{
		UID:     uid,
		Title:   CleanText(doc.Find(selTitle).First().Text()),
		Price:   CleanNumber(doc.Find(selPrice).First().Text()),
		Details: p.extractDetails(doc),
	}
	v.CarfaxURL, _ = doc.Find(selCarfax).First().Attr("href")
	v.Additional = extractAdditional(doc)
	v.Images = extractImages(doc)
	v.Features = extractFeatures(doc)
	return v
}

// extractDetails pairs the nth <dt> with the nth <dd> inside the first
// details list. Only labels present in the field map are kept, and values
// are number-cleaned only when the mapped kind says so.
func (p *Parser) extractDetails(doc *goquery.Document) map[string]domain.FieldValue {
	details := make(map[string]domain.FieldValue)
	list := doc.Find(selDetailList).First()
	labels := list.Find("dt")
	values := list.Find("dd")

	labels.Each(func(i int, dt *goquery.Selection) {
		mapped, ok := p.fieldMap[CleanText(dt.Text())]
		if !ok || i >= values.Length() {
			return
		}
		raw := values.Eq(i).Text()
		value := CleanText(raw)
		if mapped.Kind == domain.KindNumber {
			value = CleanNumber(raw)
		}
		details[mapped.FieldID] = domain.FieldValue{Value: value, Kind: mapped.Kind}
	})
	return details
}

// extractAdditional pairs consecutive sibling cells: odd positions are keys,
// even positions are values. A trailing key without a value is dropped.
func extractAdditional(doc *goquery.Document) []domain.KeyValue {
	var pairs []domain.KeyValue
	var key string
	doc.Find(selAdditional).Each(func(i int, s *goquery.Selection) {
		if i%2 == 0 {
			key = CleanText(s.Text())
			return
		}
		pairs = append(pairs, domain.KeyValue{Key: key, Value: CleanText(s.Text())})
	})
	return pairs
}

// extractImages reads the data-src attribute off each slide; the src holds a
// placeholder on this site. Empty values and duplicates are skipped.
func extractImages(doc *goquery.Document) []string {
	var images []string
	seen := make(map[string]bool)
	doc.Find(selImages).Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("data-src")
		if src == "" || seen[src] {
			return
		}
		seen[src] = true
		images = append(images, src)
	})
	return images
}

func extractFeatures(doc *goquery.Document) []string {
	var features []string
	doc.Find(selFeatures).Each(func(_ int, s *goquery.Selection) {
		features = append(features, CleanText(s.Text()))
	})
	return features
}
