package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/godbus/dbus/v5"

	"github.com/nikicat/krunner"
)

// Formatter outputs data in various formats.
type Formatter struct {
	w      io.Writer
	asJSON bool
}

// NewFormatter creates a new formatter.
func NewFormatter(w io.Writer, asJSON bool) *Formatter {
	return &Formatter{w: w, asJSON: asJSON}
}

// MatchView is the decoded, printable form of a MatchTuple.
type MatchView struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Subtitle  string   `json:"subtitle,omitempty"`
	Icon      string   `json:"icon,omitempty"`
	Type      string   `json:"type"`
	Relevance float64  `json:"relevance"`
	Category  string   `json:"category,omitempty"`
	URLs      []string `json:"urls,omitempty"`
	Actions   []string `json:"actions,omitempty"`
}

// ViewMatch decodes the well-known properties of t.
func ViewMatch(t krunner.MatchTuple) MatchView {
	return MatchView{
		ID:        t.ID,
		Title:     t.Text,
		Subtitle:  stringProp(t.Properties, krunner.PropSubtext),
		Icon:      t.Icon,
		Type:      krunner.MatchType(t.Type).String(),
		Relevance: t.Relevance,
		Category:  stringProp(t.Properties, krunner.PropCategory),
		URLs:      stringsProp(t.Properties, krunner.PropURLs),
		Actions:   stringsProp(t.Properties, krunner.PropActions),
	}
}

func stringProp(props map[string]dbus.Variant, key string) string {
	v, ok := props[key]
	if !ok {
		return ""
	}
	s, _ := v.Value().(string)
	return s
}

func stringsProp(props map[string]dbus.Variant, key string) []string {
	v, ok := props[key]
	if !ok {
		return nil
	}
	s, _ := v.Value().([]string)
	return s
}

// FormatMatches outputs matches as a table.
func (f *Formatter) FormatMatches(matches []krunner.MatchTuple) error {
	views := make([]MatchView, 0, len(matches))
	for _, m := range matches {
		views = append(views, ViewMatch(m))
	}

	if f.asJSON {
		return json.NewEncoder(f.w).Encode(views)
	}

	if len(views) == 0 {
		fmt.Fprintln(f.w, "No matches")
		return nil
	}

	// Print header
	fmt.Fprintf(f.w, "%-12s  %-11s  %5s  %-30s  %-12s  %s\n", "ID", "TYPE", "REL", "TITLE", "ACTIONS", "SUBTITLE")
	fmt.Fprintf(f.w, "%-12s  %-11s  %5s  %-30s  %-12s  %s\n", "------------", "-----------", "-----", "------------------------------", "------------", "--------")

	for _, v := range views {
		actions := "-"
		if len(v.Actions) > 0 {
			actions = strings.Join(v.Actions, ",")
		}
		subtitle := v.Subtitle
		if subtitle == "" {
			subtitle = "-"
		}
		fmt.Fprintf(f.w, "%-12s  %-11s  %5.2f  %-30s  %-12s  %s\n",
			truncate(v.ID, 12), v.Type, v.Relevance, truncate(v.Title, 30), truncate(actions, 12), subtitle)
	}
	return nil
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-1]) + "…"
}

// FormatActions outputs the runner-wide actions.
func (f *Formatter) FormatActions(actions []krunner.Action) error {
	if f.asJSON {
		return json.NewEncoder(f.w).Encode(actions)
	}

	if len(actions) == 0 {
		fmt.Fprintln(f.w, "No actions")
		return nil
	}

	fmt.Fprintf(f.w, "%-12s  %-24s  %s\n", "ID", "ICON", "TITLE")
	fmt.Fprintf(f.w, "%-12s  %-24s  %s\n", "------------", "------------------------", "-----")
	for _, a := range actions {
		fmt.Fprintf(f.w, "%-12s  %-24s  %s\n", truncate(a.ID, 12), truncate(a.Icon, 24), a.Title)
	}
	return nil
}

// FormatConfig outputs the Config reply sorted by key.
func (f *Formatter) FormatConfig(cfg map[string]dbus.Variant) error {
	if f.asJSON {
		plain := make(map[string]any, len(cfg))
		for k, v := range cfg {
			plain[k] = v.Value()
		}
		return json.NewEncoder(f.w).Encode(plain)
	}

	if len(cfg) == 0 {
		fmt.Fprintln(f.w, "No config")
		return nil
	}

	keys := make([]string, 0, len(cfg))
	for k := range cfg {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintf(f.w, "%s: %v\n", k, cfg[k].Value())
	}
	return nil
}

// FormatRun outputs a Run result.
func (f *Formatter) FormatRun(matchID, actionID string) error {
	if f.asJSON {
		return json.NewEncoder(f.w).Encode(map[string]string{
			"status":    "ran",
			"match_id":  matchID,
			"action_id": actionID,
		})
	}
	if actionID == "" {
		fmt.Fprintf(f.w, "Ran %s\n", matchID)
		return nil
	}
	fmt.Fprintf(f.w, "Ran %s (%s)\n", matchID, actionID)
	return nil
}
