package krunner

import (
	"cmp"
	"context"
	"slices"

	"github.com/godbus/dbus/v5"
)

// MatchType tells the host how confident the runner is that a match is what
// the user is looking for. Higher values rank higher.
type MatchType int32

const (
	// NoMatch is a null match.
	NoMatch MatchType = 0
	// CompletionMatch is a possible completion of the query.
	CompletionMatch MatchType = 10
	// PossibleMatch is something that may match the query.
	PossibleMatch MatchType = 30
	// InformationalMatch is a non-runnable match such as the answer to a
	// calculation.
	//
	// Deprecated: removed from KDE Frameworks 5.99.
	InformationalMatch MatchType = 50
	// HelperMatch triggers an action not directly related to the query, e.g.
	// a search in an external tool. The host never auto-activates it.
	HelperMatch MatchType = 70
	// ExactMatch is an exact match to the query.
	ExactMatch MatchType = 100
)

func (t MatchType) String() string {
	switch t {
	case NoMatch:
		return "none"
	case CompletionMatch:
		return "completion"
	case PossibleMatch:
		return "possible"
	case InformationalMatch:
		return "informational"
	case HelperMatch:
		return "helper"
	case ExactMatch:
		return "exact"
	default:
		return "unknown"
	}
}

// Action is a secondary operation the user can pick instead of a match's
// default action.
// D-Bus signature: (sss) - id, text, icon name
type Action struct {
	ID    string
	Title string
	Icon  string
}

// RemoteImage is raw icon pixel data sent instead of an icon name.
// D-Bus signature: (iiibiiay)
type RemoteImage struct {
	Width         int32
	Height        int32
	RowStride     int32
	HasAlpha      bool
	BitsPerSample int32
	Channels      int32
	Data          []byte
}

// RunFunc performs a match's operation. action is nil for the default action.
type RunFunc func(ctx context.Context, action *Action) error

// Match is a single search result returned to the host.
type Match struct {
	// ID must be stable: the host hands it back in Run.
	ID       string
	Title    string
	Subtitle string
	// Icon is an icon theme name. Ignored when IconData is set.
	Icon     string
	IconData *RemoteImage
	// Type defaults to PossibleMatch when left zero.
	Type MatchType
	// Relevance in [0, 1], used by the host to order matches of equal type.
	// It is sent as given: unlike Type it has no default, so a zero value
	// ranks the match last within its type.
	Relevance float64
	URLs      []string
	// Category groups matches in the host UI; empty means the runner name.
	Category  string
	Multiline bool
	Actions   []Action

	// Run, if set, is invoked for Run calls carrying this match's ID instead
	// of Runner.Run.
	Run RunFunc
}

// MatchTuple is the wire form of a Match.
// D-Bus signature: (sssida{sv}) - id, text, icon, type, relevance, properties
type MatchTuple struct {
	ID         string
	Text       string
	Icon       string
	Type       int32
	Relevance  float64
	Properties map[string]dbus.Variant
}

// Property keys understood by the host's DBusRunner.
const (
	PropURLs      = "urls"
	PropCategory  = "category"
	PropSubtext   = "subtext"
	PropMultiline = "multiline"
	PropActions   = "actions"
	PropIconData  = "icon-data"
)

// Tuple converts m to its wire form. Only non-zero properties are sent.
func (m Match) Tuple() MatchTuple {
	props := make(map[string]dbus.Variant)
	if len(m.URLs) > 0 {
		props[PropURLs] = dbus.MakeVariant(m.URLs)
	}
	if m.Category != "" {
		props[PropCategory] = dbus.MakeVariant(m.Category)
	}
	if m.Subtitle != "" {
		props[PropSubtext] = dbus.MakeVariant(m.Subtitle)
	}
	if m.Multiline {
		props[PropMultiline] = dbus.MakeVariant(true)
	}
	if len(m.Actions) > 0 {
		ids := make([]string, len(m.Actions))
		for i, a := range m.Actions {
			ids[i] = a.ID
		}
		props[PropActions] = dbus.MakeVariant(ids)
	}

	icon := m.Icon
	if m.IconData != nil {
		props[PropIconData] = dbus.MakeVariant(*m.IconData)
		icon = ""
	}

	typ := m.Type
	if typ == NoMatch {
		typ = PossibleMatch
	}

	return MatchTuple{
		ID:         m.ID,
		Text:       m.Title,
		Icon:       icon,
		Type:       int32(typ),
		Relevance:  m.Relevance,
		Properties: props,
	}
}

// Tuples converts matches preserving order and count. The result is never nil
// so an empty reply still marshals as an empty array.
func Tuples(matches []Match) []MatchTuple {
	out := make([]MatchTuple, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.Tuple())
	}
	return out
}

// SortMatches orders matches by type then relevance, both descending.
// Equal matches keep the order the runner produced them in.
func SortMatches(matches []Match) {
	slices.SortStableFunc(matches, func(a, b Match) int {
		if c := cmp.Compare(effectiveType(b.Type), effectiveType(a.Type)); c != 0 {
			return c
		}
		return cmp.Compare(b.Relevance, a.Relevance)
	})
}

func effectiveType(t MatchType) MatchType {
	if t == NoMatch {
		return PossibleMatch
	}
	return t
}

// Query is one incoming match request. It lives for a single request.
type Query struct {
	// ID is unique per request.
	ID string
	// Text is the raw query as typed by the user.
	Text string
	// Term is Text with the matched trigger word and surrounding space removed.
	Term string
	// Trigger is the trigger word that admitted the query, if any.
	Trigger string
	// Sender is the unique bus name of the caller.
	Sender string
}
