package parser

import (
	"fmt"
	"io"

	"github.com/PuerkitoBio/goquery"
)

// Node is a queryable region of a parsed listing page.
type Node interface {
	// FindAll returns the descendants matching a CSS selector in document order.
	FindAll(selector string) []Node
	// Text returns the first direct text child, if any.
	Text() (string, bool)
	// Texts returns every direct text child in document order.
	Texts() []string
}

// ListingPage is the root node of a parsed search results page.
type ListingPage = Node

type selectionNode struct {
	sel *goquery.Selection
}

// NewNode wraps a goquery selection, such as colly's HTMLElement.DOM.
func NewNode(sel *goquery.Selection) Node {
	return selectionNode{sel: sel}
}

// ParseListing parses an HTML document into a ListingPage.
func ParseListing(r io.Reader) (ListingPage, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse listing: %w", err)
	}
	return NewNode(doc.Selection), nil
}

func (n selectionNode) FindAll(selector string) []Node {
	found := n.sel.Find(selector)
	nodes := make([]Node, 0, found.Length())
	found.Each(func(_ int, s *goquery.Selection) {
		nodes = append(nodes, selectionNode{sel: s})
	})
	return nodes
}

func (n selectionNode) Text() (string, bool) {
	texts := n.Texts()
	if len(texts) == 0 {
		return "", false
	}
	return texts[0], true
}

func (n selectionNode) Texts() []string {
	var texts []string
	n.sel.Contents().Each(func(_ int, s *goquery.Selection) {
		if goquery.NodeName(s) == "#text" {
			texts = append(texts, s.Text())
		}
	})
	return texts
}
