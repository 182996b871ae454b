// Package timeparse turns free-form Spanish date/time expressions into instants
// in the shop's timezone.
package timeparse

import (
	"time"

	"github.com/wolfman30/barberbot/pkg/logging"
	"github.com/wolfman30/barberbot/pkg/textnorm"
)

// Parser runs the strategies in order, then the fallback.
type Parser struct {
	loc        *time.Location
	strategies []Strategy
	fallback   Fallback
	logger     *logging.Logger
}

// Option customizes a Parser.
type Option func(*Parser)

// WithFallback replaces the go-dateparser fallback. A nil fallback disables it.
func WithFallback(fb Fallback) Option {
	return func(p *Parser) { p.fallback = fb }
}

// WithLogger sets the parser logger.
func WithLogger(logger *logging.Logger) Option {
	return func(p *Parser) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New creates a parser for expressions interpreted in loc.
func New(loc *time.Location, opts ...Option) *Parser {
	if loc == nil {
		loc = time.UTC
	}
	p := &Parser{
		loc:        loc,
		strategies: DefaultStrategies(),
		fallback:   DateparserFallback(loc),
		logger:     logging.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Location returns the timezone results are expressed in.
func (p *Parser) Location() *time.Location {
	return p.loc
}

// Parse interprets text relative to now. ok is false when nothing could be understood.
func (p *Parser) Parse(text string, now time.Time) (time.Time, bool) {
	folded := textnorm.Fold(text)
	if folded == "" {
		return time.Time{}, false
	}
	now = now.In(p.loc)

	for _, s := range p.strategies {
		t, matched := s.Match(folded, now)
		if !matched {
			continue
		}
		if t.IsZero() {
			p.logger.Debug("date expression claimed but invalid", "strategy", s.Name, "text", folded)
			return time.Time{}, false
		}
		p.logger.Debug("date expression parsed", "strategy", s.Name, "result", t)
		return t, true
	}

	if p.fallback == nil {
		return time.Time{}, false
	}
	t, err := safeFallback(p.fallback, folded, now)
	if err != nil || t.IsZero() {
		p.logger.Debug("date expression not understood", "text", folded, "error", err)
		return time.Time{}, false
	}
	t = t.In(p.loc)
	p.logger.Debug("date expression parsed", "strategy", "fallback", "result", t)
	return t, true
}
