package bookmarks

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/nikicat/krunner"
)

// Action identifiers understood by Runner.
const (
	ActionOpen = "open"
	ActionCopy = "copy"
)

const (
	defaultIcon     = "bookmarks"
	defaultCategory = "Bookmarks"
)

// Actions lists the runner-wide actions to announce through Config().
var Actions = []krunner.Action{
	{ID: ActionCopy, Title: "Copy URL", Icon: "edit-copy"},
}

// command runs an external program, feeding stdin when non-empty.
var command = func(ctx context.Context, stdin, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// Runner serves a Store to KRunner.
type Runner struct {
	store *Store
}

// NewRunner creates a runner answering from store.
func NewRunner(store *Store) *Runner {
	return &Runner{store: store}
}

// Match implements krunner.Runner.
func (r *Runner) Match(ctx context.Context, q krunner.Query) ([]krunner.Match, error) {
	hits := r.store.Search(q.Term)
	matches := make([]krunner.Match, 0, len(hits))
	for _, h := range hits {
		icon := h.Icon
		if icon == "" {
			icon = defaultIcon
		}
		category := h.Category
		if category == "" {
			category = defaultCategory
		}
		matches = append(matches, krunner.Match{
			ID:        h.ID,
			Title:     h.Title,
			Subtitle:  h.URL,
			Icon:      icon,
			Type:      h.Type,
			Relevance: h.Relevance,
			URLs:      []string{h.URL},
			Category:  category,
		})
	}
	return matches, nil
}

// Run implements krunner.Runner. A nil action opens the bookmark.
func (r *Runner) Run(ctx context.Context, matchID string, action *krunner.Action) error {
	b, ok := r.store.Get(matchID)
	if !ok {
		return fmt.Errorf("bookmark %q: %w", matchID, krunner.ErrNotFound)
	}

	id := ActionOpen
	if action != nil {
		id = action.ID
	}
	switch id {
	case ActionOpen:
		return command(ctx, "", "xdg-open", b.URL)
	case ActionCopy:
		return copyToClipboard(ctx, b.URL)
	}
	return fmt.Errorf("action %q: %w", id, krunner.ErrNotFound)
}

func copyToClipboard(ctx context.Context, text string) error {
	if os.Getenv("WAYLAND_DISPLAY") != "" {
		return command(ctx, text, "wl-copy")
	}
	return command(ctx, text, "xclip", "-selection", "clipboard")
}
