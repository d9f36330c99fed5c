// Package pager computes successive listing-page URLs for a crawl run.
//
// The site addresses its second results page with a static path and every
// later page with an item offset, so State hides that irregularity behind
// a single Next call.
package pager

import "fmt"

// Scheme describes how listing pages after the first are addressed.
type Scheme struct {
	SecondPageURL   string
	PageURLTemplate string // a single %d receives the offset
	OffsetBase      int
	OffsetStep      int
}

// Offset returns the item offset used when the counter reads pageCount.
func (s Scheme) Offset(pageCount int) int {
	return s.OffsetBase + (pageCount-1)*s.OffsetStep
}

// URLFor returns the URL requested after pageCount pages were processed.
func (s Scheme) URLFor(pageCount int) string {
	if pageCount == 1 {
		return s.SecondPageURL
	}
	return fmt.Sprintf(s.PageURLTemplate, s.Offset(pageCount))
}

// State is the page counter of a single crawl run. It is not safe for
// concurrent use; paging is sequential.
type State struct {
	PageCount int
	MaxPage   int
}

// NewState returns a counter positioned on the first page.
func NewState(maxPage int) *State {
	return &State{PageCount: 1, MaxPage: maxPage}
}

// Next returns the URL of the following page and advances the counter, or
// reports false once MaxPage pages have been dispatched.
func (st *State) Next(s Scheme) (string, bool) {
	if st.PageCount >= st.MaxPage {
		return "", false
	}
	next := s.URLFor(st.PageCount)
	st.PageCount++
	return next, true
}
