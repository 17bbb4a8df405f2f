package bookmarks

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nikicat/krunner"
)

const sampleYAML = `
bookmarks:
  - title: KDE
    url: https://kde.org
    keywords: [plasma, desktop]
  - title: KDE Developer
    url: https://develop.kde.org
    category: Docs
  - title: Go Packages
    url: https://pkg.go.dev
    icon: golang
    keywords: [godoc]
  - url: https://example.com/kde-wiki
  - title: Duplicate
    url: https://kde.org
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func newTestStore(t *testing.T, content string) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bookmarks.yaml")
	writeFile(t, path, content)
	s, err := NewStore(path, nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s, path
}

func TestParse(t *testing.T) {
	items, err := Parse([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(items) != 4 {
		t.Fatalf("got %d bookmarks, want 4 (duplicate dropped)", len(items))
	}
	if items[0].Title != "KDE" {
		t.Errorf("first entry should win on duplicate URL, got %q", items[0].Title)
	}
	if items[3].Title != "https://example.com/kde-wiki" {
		t.Errorf("missing title should fall back to URL, got %q", items[3].Title)
	}
	if items[0].ID != IDFor("https://kde.org") {
		t.Errorf("ID = %q, want %q", items[0].ID, IDFor("https://kde.org"))
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"missing url", "bookmarks:\n  - title: nothing\n"},
		{"invalid yaml", "bookmarks: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.data)); err == nil {
				t.Error("want error")
			}
		})
	}
}

func TestIDFor_Stable(t *testing.T) {
	a, b := IDFor("https://kde.org"), IDFor("https://kde.org")
	if a != b {
		t.Errorf("IDFor not deterministic: %q vs %q", a, b)
	}
	if a == IDFor("https://kde.org/") {
		t.Error("different URLs share an ID")
	}
}

func TestLoadFile_Missing(t *testing.T) {
	items, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("got %d items from a missing file", len(items))
	}
}

func TestSearch(t *testing.T) {
	s, _ := newTestStore(t, sampleYAML)

	tests := []struct {
		term      string
		wantFirst string
		wantType  krunner.MatchType
		wantRel   float64
		wantCount int
	}{
		{"kde", "KDE", krunner.ExactMatch, 1.0, 3},
		{"KDE dev", "KDE Developer", krunner.PossibleMatch, 0.9, 1},
		{"packages", "Go Packages", krunner.PossibleMatch, 0.7, 1},
		{"plasma", "KDE", krunner.PossibleMatch, 0.8, 1},
		{"doc", "Go Packages", krunner.PossibleMatch, 0.6, 1},
		{"pkg.go", "Go Packages", krunner.PossibleMatch, 0.4, 1},
		{"nothing-here", "", 0, 0, 0},
		{"   ", "", 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.term, func(t *testing.T) {
			hits := s.Search(tt.term)
			if len(hits) != tt.wantCount {
				t.Fatalf("got %d hits, want %d: %+v", len(hits), tt.wantCount, hits)
			}
			if tt.wantCount == 0 {
				return
			}
			h := hits[0]
			if h.Title != tt.wantFirst || h.Type != tt.wantType || h.Relevance != tt.wantRel {
				t.Errorf("first hit = %q %v %.2f, want %q %v %.2f",
					h.Title, h.Type, h.Relevance, tt.wantFirst, tt.wantType, tt.wantRel)
			}
		})
	}
}

func TestSearch_OrderedByRelevance(t *testing.T) {
	s, _ := newTestStore(t, sampleYAML)
	hits := s.Search("kde")
	for i := 1; i < len(hits); i++ {
		if hits[i].Relevance > hits[i-1].Relevance {
			t.Errorf("hit %d (%.2f) ranks above hit %d (%.2f)", i, hits[i].Relevance, i-1, hits[i-1].Relevance)
		}
	}
}

func TestReload_KeepsPreviousOnError(t *testing.T) {
	s, path := newTestStore(t, sampleYAML)

	writeFile(t, path, "bookmarks: [\n")
	if err := s.Reload(); err == nil {
		t.Fatal("Reload of broken file succeeded")
	}
	if got := len(s.All()); got != 4 {
		t.Errorf("after failed reload have %d bookmarks, want 4", got)
	}

	writeFile(t, path, "bookmarks:\n  - url: https://only.example\n")
	if err := s.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if got := len(s.All()); got != 1 {
		t.Errorf("after reload have %d bookmarks, want 1", got)
	}
	if _, ok := s.Get(IDFor("https://kde.org")); ok {
		t.Error("stale bookmark still reachable by ID")
	}
}

func TestWatch_ReloadsOnChange(t *testing.T) {
	s, path := newTestStore(t, sampleYAML)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Watch(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	// The watcher registers asynchronously; keep rewriting until it notices.
	want := IDFor("https://new.example")
	deadline := time.Now().Add(5 * time.Second)
	for {
		writeFile(t, path, "bookmarks:\n  - title: New\n    url: https://new.example\n")
		time.Sleep(50 * time.Millisecond)
		if _, ok := s.Get(want); ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("store was not reloaded within 5s")
		}
	}

	if got := len(s.All()); got != 1 {
		t.Errorf("have %d bookmarks after reload, want 1", got)
	}
}

func TestWatch_IgnoresOtherFiles(t *testing.T) {
	s, path := newTestStore(t, sampleYAML)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Watch(ctx) }()

	time.Sleep(100 * time.Millisecond)
	writeFile(t, filepath.Join(filepath.Dir(path), "other.yaml"), "bookmarks: [\n")
	time.Sleep(100 * time.Millisecond)

	cancel()
	if err := <-done; err != context.Canceled {
		t.Errorf("Watch returned %v, want context.Canceled", err)
	}
	if got := len(s.All()); got != 4 {
		t.Errorf("have %d bookmarks, want 4", got)
	}
}
