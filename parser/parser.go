// Package parser turns listing pages into product records.
package parser

import (
	"iter"

	"github.com/DNDmC/mercadolivre-scraper/models"
)

// Selectors locates each record field inside a listing page.
type Selectors struct {
	Wrapper      string
	Brand        string
	Title        string
	Seller       string
	Rating       string
	ReviewsTotal string
	Price        string
}

// DefaultSelectors matches the search result cards on lista.mercadolivre.com.br.
func DefaultSelectors() Selectors {
	return Selectors{
		Wrapper:      "div.ui-search-result__wrapper",
		Brand:        "span.poly-component__brand",
		Title:        "a.poly-component__title",
		Seller:       "span.poly-component__seller",
		Rating:       "span.poly-reviews__rating",
		ReviewsTotal: "span.poly-reviews__total",
		Price:        "span.andes-money-amount__fraction",
	}
}

// Extractor maps result wrappers to products.
type Extractor struct {
	sel Selectors
}

// NewExtractor builds an extractor for the given selectors.
func NewExtractor(sel Selectors) *Extractor {
	return &Extractor{sel: sel}
}

// Extract yields one product per result wrapper, in document order. The
// sequence is lazy and may be ranged over any number of times.
func (x *Extractor) Extract(page ListingPage) iter.Seq[*models.Product] {
	return func(yield func(*models.Product) bool) {
		if page == nil {
			return
		}
		for _, wrapper := range page.FindAll(x.sel.Wrapper) {
			if !yield(x.product(wrapper)) {
				return
			}
		}
	}
}

// ExtractAll collects Extract into a slice.
func (x *Extractor) ExtractAll(page ListingPage) []*models.Product {
	var products []*models.Product
	for p := range x.Extract(page) {
		products = append(products, p)
	}
	return products
}

func (x *Extractor) product(wrapper Node) *models.Product {
	prices := allText(wrapper, x.sel.Price)

	return &models.Product{
		Brand:               firstText(wrapper, x.sel.Brand),
		Name:                firstText(wrapper, x.sel.Title),
		Seller:              firstText(wrapper, x.sel.Seller),
		ReviewsRatingNumber: firstText(wrapper, x.sel.Rating),
		ReviewsAmount:       firstText(wrapper, x.sel.ReviewsTotal),
		OldMoney:            at(prices, 0),
		NewMoney:            at(prices, 1),
	}
}

// firstText returns the first text node across all matches, skipping
// matched elements that have no text of their own.
func firstText(scope Node, selector string) *string {
	for _, n := range scope.FindAll(selector) {
		if text, ok := n.Text(); ok {
			return &text
		}
	}
	return nil
}

func allText(scope Node, selector string) []string {
	var out []string
	for _, n := range scope.FindAll(selector) {
		out = append(out, n.Texts()...)
	}
	return out
}

func at(values []string, i int) *string {
	if i >= len(values) {
		return nil
	}
	v := values[i]
	return &v
}

// MissingFields names the fields a product was extracted without.
func MissingFields(p *models.Product) []string {
	if p == nil {
		return nil
	}
	var missing []string
	for i, v := range p.Values() {
		if v == nil {
			missing = append(missing, models.Fields[i])
		}
	}
	return missing
}
