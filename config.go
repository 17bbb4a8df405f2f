package krunner

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/godbus/dbus/v5"
)

// Filter decides whether a query is worth matching. It must be a pure
// function of the query.
type Filter func(q Query) bool

// Config is the process-wide runner configuration. It is read once when the
// adapter is built and never changes afterwards.
type Config struct {
	// Name identifies the runner in logs.
	Name string

	// MatchRegex, MinLetterCount and TriggerWords are advertised to the host
	// through the Config method and enforced locally before matching.
	// MinLetterCount counts runes of the trimmed text. A trigger word must be
	// followed by whitespace or the end of the text.
	MatchRegex     string
	MinLetterCount int
	TriggerWords   []string

	// Actions are the runner-wide actions returned by the Actions method.
	Actions []Action

	// SortByScore orders matches by type and relevance before replying.
	// Otherwise the runner's order is the display order.
	SortByScore bool

	// Filter runs after the built-in checks.
	Filter Filter
}

// Properties returns the Config method reply.
// D-Bus signature: a{sv}
func (c Config) Properties() map[string]dbus.Variant {
	props := make(map[string]dbus.Variant)
	if c.MatchRegex != "" {
		props["MatchRegex"] = dbus.MakeVariant(c.MatchRegex)
	}
	if c.MinLetterCount > 0 {
		props["MinLetterCount"] = dbus.MakeVariant(int32(c.MinLetterCount))
	}
	if len(c.TriggerWords) > 0 {
		props["TriggerWords"] = dbus.MakeVariant(c.TriggerWords)
	}
	if len(c.Actions) > 0 {
		props["Actions"] = dbus.MakeVariant(c.Actions)
	}
	return props
}

// gate is the compiled form of the Config checks plus any runner filter.
type gate struct {
	minLetters int
	re         *regexp.Regexp
	triggers   []string
	filters    []Filter
}

func newGate(cfg Config, extra ...Filter) (*gate, error) {
	g := &gate{minLetters: cfg.MinLetterCount}
	if cfg.MatchRegex != "" {
		re, err := regexp.Compile(cfg.MatchRegex)
		if err != nil {
			return nil, fmt.Errorf("compile match regex %q: %w", cfg.MatchRegex, err)
		}
		g.re = re
	}
	for _, w := range cfg.TriggerWords {
		if w = strings.TrimSpace(w); w != "" {
			g.triggers = append(g.triggers, w)
		}
	}
	if cfg.Filter != nil {
		g.filters = append(g.filters, cfg.Filter)
	}
	for _, f := range extra {
		if f != nil {
			g.filters = append(g.filters, f)
		}
	}
	return g, nil
}

// admit fills in Trigger and Term and reports whether the query passes.
func (g *gate) admit(q Query) (Query, bool) {
	q.Term = strings.TrimSpace(q.Text)
	if utf8.RuneCountInString(q.Term) < g.minLetters {
		return q, false
	}
	if g.re != nil && !g.re.MatchString(q.Text) {
		return q, false
	}

	if len(g.triggers) > 0 {
		trigger, ok := matchTrigger(q.Term, g.triggers)
		if !ok {
			return q, false
		}
		q.Trigger = trigger
		q.Term = strings.TrimSpace(q.Term[len(trigger):])
	}

	for _, f := range g.filters {
		if !f(q) {
			return q, false
		}
	}
	return q, true
}

// matchTrigger returns the longest trigger word prefixing text, compared
// case-insensitively. The trigger must be followed by whitespace or the end
// of text.
func matchTrigger(text string, triggers []string) (string, bool) {
	best := ""
	for _, t := range triggers {
		if len(t) > len(text) || len(t) <= len(best) {
			continue
		}
		if !strings.EqualFold(text[:len(t)], t) {
			continue
		}
		if rest := text[len(t):]; rest != "" {
			if r, _ := utf8.DecodeRuneInString(rest); !unicode.IsSpace(r) {
				continue
			}
		}
		best = t
	}
	if best == "" {
		return "", false
	}
	return text[:len(best)], true
}
