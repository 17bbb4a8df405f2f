// Package bookmarks indexes a YAML bookmarks file and serves it as a KRunner runner.
package bookmarks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/nikicat/krunner"
)

// Bookmark is one entry of the bookmarks file.
type Bookmark struct {
	ID       string   `yaml:"-"`
	Title    string   `yaml:"title"`
	URL      string   `yaml:"url"`
	Icon     string   `yaml:"icon"`
	Category string   `yaml:"category"`
	Keywords []string `yaml:"keywords"`
}

type file struct {
	Bookmarks []Bookmark `yaml:"bookmarks"`
}

// IDFor returns the stable identifier of the bookmark pointing at url.
func IDFor(url string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(url)).String()
}

// Parse decodes a bookmarks document. Entries without a URL are an error,
// a missing title falls back to the URL, and duplicate URLs keep the first entry.
func Parse(data []byte) ([]Bookmark, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(f.Bookmarks))
	out := make([]Bookmark, 0, len(f.Bookmarks))
	for i, b := range f.Bookmarks {
		b.URL = strings.TrimSpace(b.URL)
		if b.URL == "" {
			return nil, fmt.Errorf("bookmark %d: url is required", i)
		}
		if b.Title == "" {
			b.Title = b.URL
		}
		b.ID = IDFor(b.URL)
		if seen[b.ID] {
			continue
		}
		seen[b.ID] = true
		out = append(out, b)
	}
	return out, nil
}

// LoadFile reads and parses path. A missing file yields no bookmarks.
func LoadFile(path string) ([]Bookmark, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	items, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing bookmarks %s: %w", path, err)
	}
	return items, nil
}

// Hit is a bookmark that matched a search term.
type Hit struct {
	Bookmark
	Type      krunner.MatchType
	Relevance float64
}

// Store holds the current bookmark set and reloads it from disk on demand.
type Store struct {
	path string
	log  *slog.Logger

	mu    sync.RWMutex
	items []Bookmark
	byID  map[string]int
}

// NewStore loads path and returns a store serving its contents.
func NewStore(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{path: filepath.Clean(path), log: logger}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads the file. On error the previous set stays in place.
func (s *Store) Reload() error {
	items, err := LoadFile(s.path)
	if err != nil {
		return err
	}
	s.set(items)
	s.log.Info("bookmarks loaded", "path", s.path, "count", len(items))
	return nil
}

func (s *Store) set(items []Bookmark) {
	byID := make(map[string]int, len(items))
	for i, b := range items {
		byID[b.ID] = i
	}
	s.mu.Lock()
	s.items = items
	s.byID = byID
	s.mu.Unlock()
}

// All returns a copy of the current bookmarks in file order.
func (s *Store) All() []Bookmark {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.items)
}

// Get looks a bookmark up by ID.
func (s *Store) Get(id string) (Bookmark, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.byID[id]
	if !ok {
		return Bookmark{}, false
	}
	return s.items[i], true
}

// Search returns the bookmarks matching term, best first. Matching is
// case-insensitive; an empty term matches nothing.
func (s *Store) Search(term string) []Hit {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return nil
	}

	s.mu.RLock()
	var hits []Hit
	for _, b := range s.items {
		if h, ok := score(b, term); ok {
			hits = append(hits, h)
		}
	}
	s.mu.RUnlock()

	slices.SortStableFunc(hits, func(a, b Hit) int {
		switch {
		case a.Relevance > b.Relevance:
			return -1
		case a.Relevance < b.Relevance:
			return 1
		}
		return strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
	})
	return hits
}

func score(b Bookmark, term string) (Hit, bool) {
	title := strings.ToLower(b.Title)
	h := Hit{Bookmark: b, Type: krunner.PossibleMatch}

	switch {
	case title == term:
		h.Type, h.Relevance = krunner.ExactMatch, 1.0
		return h, true
	case strings.HasPrefix(title, term):
		h.Relevance = 0.9
	case strings.Contains(title, term):
		h.Relevance = 0.7
	}

	for _, kw := range b.Keywords {
		kw = strings.ToLower(kw)
		switch {
		case kw == term:
			h.Relevance = max(h.Relevance, 0.8)
		case strings.Contains(kw, term):
			h.Relevance = max(h.Relevance, 0.6)
		}
	}

	if h.Relevance == 0 && strings.Contains(strings.ToLower(b.URL), term) {
		h.Relevance = 0.4
	}
	return h, h.Relevance > 0
}

// Watch reloads the store whenever the bookmarks file is written, created,
// renamed or removed. It blocks until ctx is cancelled.
func (s *Store) Watch(ctx context.Context) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create bookmarks directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch the directory: editors replace the file by renaming over it.
	if err := watcher.Add(dir); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			s.handleEvent(event)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.log.Error("bookmarks watcher error", "error", err)
		}
	}
}

func (s *Store) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != s.path {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
		return
	}
	if err := s.Reload(); err != nil {
		s.log.Warn("keeping previous bookmarks", "path", s.path, "error", err)
	}
}
