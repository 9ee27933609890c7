package classify

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/xkilldash9x/cartwatch/internal/browser"
)

// Node is the view of a result card the classifier inspects.
type Node interface {
	// Matches reports whether the node or a descendant matches the CSS
	// selector, with a short description of the match.
	Matches(ctx context.Context, selector string) (bool, string, error)
	VisibleText(ctx context.Context) (string, error)
	Attr(ctx context.Context, name string) (string, bool, error)
}

// Snapshot is an immutable copy of a card's markup and rendered text.
// Classifying a snapshot is deterministic.
type Snapshot struct {
	root *goquery.Selection
	text string
}

// NewSnapshot parses outerHTML. visibleText is the rendered text of the
// card as reported by the browser.
func NewSnapshot(outerHTML, visibleText string) (*Snapshot, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(outerHTML))
	if err != nil {
		return nil, fmt.Errorf("parse card markup: %w", err)
	}
	root := doc.Find("body").Children().First()
	if root.Length() == 0 {
		root = doc.Selection
	}
	return &Snapshot{root: root, text: visibleText}, nil
}

// SnapshotOf captures a live element.
func SnapshotOf(ctx context.Context, el browser.Element) (*Snapshot, error) {
	markup, err := el.OuterHTML(ctx)
	if err != nil {
		return nil, err
	}
	text, err := el.Text(ctx)
	if err != nil {
		return nil, err
	}
	return NewSnapshot(markup, text)
}

func (s *Snapshot) Matches(_ context.Context, selector string) (bool, string, error) {
	if s.root.Is(selector) {
		return true, "self", nil
	}
	found := s.root.Find(selector).First()
	if found.Length() == 0 {
		return false, "", nil
	}
	return true, goquery.NodeName(found), nil
}

func (s *Snapshot) VisibleText(context.Context) (string, error) { return s.text, nil }

func (s *Snapshot) Attr(_ context.Context, name string) (string, bool, error) {
	v, ok := s.root.Attr(name)
	return v, ok, nil
}

// LiveNode classifies directly against the page. Results can change as the
// page mutates; prefer a Snapshot when determinism matters.
type LiveNode struct {
	El browser.Element
}

func (l LiveNode) Matches(ctx context.Context, selector string) (bool, string, error) {
	els, err := l.El.FindAll(ctx, browser.Locator(selector))
	if err != nil {
		return false, "", err
	}
	if len(els) == 0 {
		return false, "", nil
	}
	return true, els[0].Describe(), nil
}

func (l LiveNode) VisibleText(ctx context.Context) (string, error) { return l.El.Text(ctx) }

func (l LiveNode) Attr(ctx context.Context, name string) (string, bool, error) {
	return l.El.Attr(ctx, name)
}
