// Package classify decides whether a search result is paid placement,
// keeping the evidence behind each decision.
package classify

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/xkilldash9x/cartwatch/internal/browser"
	"github.com/xkilldash9x/cartwatch/internal/config"
	"github.com/xkilldash9x/cartwatch/internal/trace"
)

// Source identifies which detector produced a signal.
type Source string

const (
	LabelAttribute      Source = "label-attribute"
	KeywordText         Source = "keyword-text"
	StructuralAttribute Source = "structural-attribute"
	CSSClass            Source = "css-class"
)

// Signal is the outcome of one detector.
type Signal struct {
	Source  Source
	Matched bool
	Reason  string
}

// Verdict lists the signals evaluated, in order, up to and including the
// first match.
type Verdict struct {
	Sponsored bool
	Signals   []Signal
}

// Deciding returns the matched signal of a sponsored verdict.
func (v Verdict) Deciding() (Signal, bool) {
	if !v.Sponsored || len(v.Signals) == 0 {
		return Signal{}, false
	}
	return v.Signals[len(v.Signals)-1], true
}

func (v Verdict) String() string {
	if s, ok := v.Deciding(); ok {
		return fmt.Sprintf("sponsored (%s: %s)", s.Source, s.Reason)
	}
	return "organic"
}

// Observer receives verdicts.
type Observer interface {
	RecordClassification(sponsored bool, source string)
}

// Classifier evaluates detectors in a fixed order.
type Classifier struct {
	logger    *zap.Logger
	observer  Observer
	vocab     config.ClassifierConfig
	keywords  []string
	detectors []detector
}

type detector struct {
	source Source
	detect func(ctx context.Context, n Node) (bool, string, error)
}

// New creates a Classifier over the configured vocabularies.
func New(logger *zap.Logger, vocab config.ClassifierConfig, observer Observer) *Classifier {
	c := &Classifier{
		logger:   logger.Named("classifier"),
		observer: observer,
		vocab:    vocab,
	}
	for _, k := range vocab.Keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			c.keywords = append(c.keywords, k)
		}
	}
	c.detectors = []detector{
		{LabelAttribute, c.detectLabel},
		{KeywordText, c.detectKeyword},
		{StructuralAttribute, c.detectStructural},
		{CSSClass, c.detectClass},
	}
	return c
}

// Classify runs the detectors in order and stops at the first match. A
// node with no matching detector is organic. Detector errors count as no
// match and are kept in the signal's reason.
func (c *Classifier) Classify(ctx context.Context, n Node) Verdict {
	var v Verdict
	for _, d := range c.detectors {
		matched, reason, err := d.detect(ctx, n)
		if err != nil {
			reason = "error: " + err.Error()
			matched = false
		}
		v.Signals = append(v.Signals, Signal{Source: d.source, Matched: matched, Reason: reason})
		if matched {
			v.Sponsored = true
			break
		}
	}

	source := ""
	if s, ok := v.Deciding(); ok {
		source = string(s.Source)
	}
	if c.observer != nil {
		c.observer.RecordClassification(v.Sponsored, source)
	}
	trace.FromContext(ctx).Add(trace.KindClassify, "verdict", true, v.String())
	return v
}

// FirstOrganic snapshots each element in order and returns the index of the
// first organic one, with its verdict.
func (c *Classifier) FirstOrganic(ctx context.Context, els []browser.Element) (int, Verdict, bool) {
	for i, el := range els {
		if ctx.Err() != nil {
			break
		}
		snap, err := SnapshotOf(ctx, el)
		if err != nil {
			c.logger.Debug("Skipping result that could not be captured.", zap.Int("index", i), zap.Error(err))
			continue
		}
		v := c.Classify(ctx, snap)
		if !v.Sponsored {
			return i, v, true
		}
		c.logger.Debug("Skipping sponsored result.", zap.Int("index", i), zap.Stringer("verdict", v))
	}
	return -1, Verdict{}, false
}

func (c *Classifier) detectLabel(ctx context.Context, n Node) (bool, string, error) {
	var firstErr error
	for _, sel := range c.vocab.LabelSelectors {
		ok, what, err := n.Matches(ctx, sel)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if ok {
			return true, fmt.Sprintf("%s matched %s", sel, what), nil
		}
	}
	if firstErr != nil {
		return false, "", firstErr
	}
	return false, "no label selector matched", nil
}

func (c *Classifier) detectKeyword(ctx context.Context, n Node) (bool, string, error) {
	text, err := n.VisibleText(ctx)
	if err != nil {
		return false, "", err
	}
	if kw, ok := matchKeyword(strings.ToLower(text), c.keywords); ok {
		return true, fmt.Sprintf("text contains %q", kw), nil
	}
	return false, "no keyword in text", nil
}

func (c *Classifier) detectStructural(ctx context.Context, n Node) (bool, string, error) {
	for _, name := range c.vocab.DataAttributes {
		val, ok, err := n.Attr(ctx, name)
		if err != nil {
			return false, "", err
		}
		if ok && adValue(val) {
			return true, fmt.Sprintf("%s=%q", name, val), nil
		}
	}
	return false, "no ad marker attribute", nil
}

func (c *Classifier) detectClass(ctx context.Context, n Node) (bool, string, error) {
	class, _, err := n.Attr(ctx, "class")
	if err != nil {
		return false, "", err
	}
	lower := strings.ToLower(class)
	for _, frag := range c.vocab.ClassFragments {
		if frag != "" && strings.Contains(lower, strings.ToLower(frag)) {
			return true, fmt.Sprintf("class contains %q", frag), nil
		}
	}
	return false, "no ad class fragment", nil
}

// matchKeyword returns the first keyword found in text. Keywords of two
// letters or fewer only match as whole words.
func matchKeyword(text string, keywords []string) (string, bool) {
	var words map[string]struct{}
	for _, kw := range keywords {
		if len([]rune(kw)) > 2 {
			if strings.Contains(text, kw) {
				return kw, true
			}
			continue
		}
		if words == nil {
			words = make(map[string]struct{})
			for _, w := range tokens(text) {
				words[w] = struct{}{}
			}
		}
		if _, ok := words[kw]; ok {
			return kw, true
		}
	}
	return "", false
}

// adValue reports whether an attribute value marks paid placement.
func adValue(val string) bool {
	lower := strings.ToLower(val)
	if strings.Contains(lower, "sponsored") {
		return true
	}
	for _, t := range tokens(lower) {
		if t == "ad" || t == "ads" {
			return true
		}
	}
	return false
}

func tokens(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
