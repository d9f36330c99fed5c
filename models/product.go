// Package models defines data structures for the scraper.
package models

import "time"

// Product is one listed item from a search results page. Every field is
// the raw matched text, or nil when the page did not render it.
type Product struct {
	Brand               *string `json:"brand"`
	Name                *string `json:"name"`
	Seller              *string `json:"seller"`
	ReviewsRatingNumber *string `json:"reviews_rating_number"`
	ReviewsAmount       *string `json:"reviews_amount"`
	OldMoney            *string `json:"old_money"`
	NewMoney            *string `json:"new_money"`
}

// Fields lists the record columns in output order.
var Fields = []string{
	"brand",
	"name",
	"seller",
	"reviews_rating_number",
	"reviews_amount",
	"old_money",
	"new_money",
}

// Values returns the fields in the same order as Fields.
func (p *Product) Values() []*string {
	return []*string{
		p.Brand,
		p.Name,
		p.Seller,
		p.ReviewsRatingNumber,
		p.ReviewsAmount,
		p.OldMoney,
		p.NewMoney,
	}
}

// ScraperResult holds the overall result of a scraping operation
type ScraperResult struct {
	RunID        string
	StartTime    time.Time
	EndTime      time.Time
	TotalCount   int
	ErrorCount   int
	FailedURLs   []string
	ErrorsByType map[string]int
	RetryCount   int
	RequestCount int
	PageCount    int
	FollowUps    int
}
