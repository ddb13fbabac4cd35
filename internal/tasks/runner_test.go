package tasks

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/mediafetch/internal/artifacts"
	"github.com/desertthunder/mediafetch/internal/extractor"
	"github.com/desertthunder/mediafetch/internal/models"
	"github.com/desertthunder/mediafetch/internal/shared"
	tu "github.com/desertthunder/mediafetch/internal/testing"
)

func newTestStore(t *testing.T) *artifacts.Store {
	t.Helper()
	store, err := artifacts.NewStore(t.TempDir(), shared.DiscardLogger())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	return store
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestSanitizeTitle(t *testing.T) {
	tc := []struct {
		name  string
		title string
		want  string
	}{
		{name: "plain", title: "My Clip", want: "My Clip"},
		{name: "punctuation removed", title: "Hello, World! (Official)", want: "Hello World Official"},
		{name: "keeps underscore and hyphen", title: "a_b-c", want: "a_b-c"},
		{name: "path separators", title: "../../etc/passwd", want: "etcpasswd"},
		{name: "unicode letters kept", title: "Café déjà vu", want: "Café déjà vu"},
		{name: "trimmed", title: "  spaced  ", want: "spaced"},
		{name: "only punctuation", title: "!!!???", want: FallbackTitle},
		{name: "empty", title: "", want: FallbackTitle},
		{name: "emoji only", title: "🎵🎶", want: FallbackTitle},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeTitle(tt.title); got != tt.want {
				t.Errorf("SanitizeTitle(%q) = %q, want %q", tt.title, got, tt.want)
			}
		})
	}

	t.Run("long titles are truncated on a rune boundary", func(t *testing.T) {
		got := SanitizeTitle(strings.Repeat("é", 150))
		if len(got) > maxBaseBytes {
			t.Errorf("len = %d, want <= %d", len(got), maxBaseBytes)
		}
		if !strings.HasPrefix(strings.Repeat("é", 150), got) {
			t.Error("truncation split a rune")
		}
	})
}

func TestRunnerExecute(t *testing.T) {
	route := models.Direct()

	t.Run("promotes the download and publishes finished", func(t *testing.T) {
		store := newTestStore(t)
		fake := &tu.FakeExtractor{}
		runner := NewRunner(fake, store, 5*time.Second, shared.DiscardLogger())
		task := NewTask(context.Background(), "t1", models.FetchRequest{URL: "https://youtu.be/abc", Kind: models.KindAudio})

		ref, err := runner.Execute(context.Background(), task, route)
		if err != nil {
			t.Fatalf("Execute failed: %v", err)
		}
		if ref.Name != "Test Clip.mp3" {
			t.Errorf("name = %q", ref.Name)
		}
		if ref.DownloadURL != "/get-file/Test%20Clip.mp3" {
			t.Errorf("download url = %q", ref.DownloadURL)
		}
		if got := tu.MustReadFile(t, ref.Path); got != "media:https://youtu.be/abc" {
			t.Errorf("content = %q", got)
		}
		if names := listDir(t, store.Dir()); len(names) != 1 {
			t.Errorf("expected only the promoted file, got %v", names)
		}

		events := tu.Drain(task.Events(context.Background()))
		if len(events) != 5 {
			t.Fatalf("expected 5 events, got %#v", events)
		}
		if p := events[2].(models.Progress); p.Percent != 50 || p.Speed != "1.0 kB/s" {
			t.Errorf("unexpected progress %#v", p)
		}
		if events[4] != (models.Finished{DownloadURL: ref.DownloadURL}) {
			t.Errorf("terminal = %#v", events[4])
		}

		calls := fake.FetchCalls()
		if len(calls) != 1 || calls[0].Kind != models.KindAudio || calls[0].Timeout != 5*time.Second {
			t.Errorf("unexpected fetch options %+v", calls)
		}
		snap := task.Snapshot()
		if snap.Title != "Test Clip" || snap.Filename != "Test Clip.mp3" || snap.Attempts != 1 {
			t.Errorf("unexpected snapshot %+v", snap)
		}
	})

	t.Run("probe failure stops before fetching", func(t *testing.T) {
		store := newTestStore(t)
		fake := &tu.FakeExtractor{
			ProbeFunc: func(context.Context, string, extractor.ProbeOptions) (*extractor.MediaInfo, error) {
				return nil, errors.New("Video unavailable")
			},
		}
		runner := NewRunner(fake, store, time.Second, shared.DiscardLogger())
		task := NewTask(context.Background(), "t2", models.FetchRequest{URL: "https://youtu.be/x", Kind: models.KindVideo})

		if _, err := runner.Execute(context.Background(), task, route); err == nil {
			t.Fatal("expected error")
		}
		if len(fake.FetchCalls()) != 0 {
			t.Error("fetch should not run after a failed probe")
		}
		if task.bus.Terminated() {
			t.Error("runner must not publish a terminal event on failure")
		}
	})

	t.Run("missing output is a resource error and leftovers are removed", func(t *testing.T) {
		store := newTestStore(t)
		fake := &tu.FakeExtractor{
			FetchFunc: func(_ context.Context, _ string, opts extractor.FetchOptions) error {
				path := strings.ReplaceAll(opts.OutputTemplate, "%(ext)s", "mp4.part")
				return os.WriteFile(path, []byte("partial"), 0644)
			},
		}
		runner := NewRunner(fake, store, time.Second, shared.DiscardLogger())
		task := NewTask(context.Background(), "t3", models.FetchRequest{URL: "https://youtu.be/x", Kind: models.KindVideo})

		_, err := runner.Execute(context.Background(), task, route)
		if !errors.Is(err, shared.ErrTempFileMissing) || !errors.Is(err, shared.ErrResource) {
			t.Fatalf("expected ErrTempFileMissing, got %v", err)
		}
		if names := listDir(t, store.Dir()); len(names) != 0 {
			t.Errorf("expected empty store, got %v", names)
		}
	})

	t.Run("fetch failure cleans up temporary files", func(t *testing.T) {
		store := newTestStore(t)
		fake := &tu.FakeExtractor{
			FetchFunc: func(_ context.Context, _ string, opts extractor.FetchOptions) error {
				_, _ = tu.WriteOutput(opts.OutputTemplate, "f137.mp4", "half")
				return errors.New("HTTP Error 429: Too Many Requests")
			},
		}
		runner := NewRunner(fake, store, time.Second, shared.DiscardLogger())
		task := NewTask(context.Background(), "t4", models.FetchRequest{URL: "https://youtu.be/x", Kind: models.KindVideo})

		if _, err := runner.Execute(context.Background(), task, route); err == nil {
			t.Fatal("expected error")
		}
		if names := listDir(t, store.Dir()); len(names) != 0 {
			t.Errorf("expected empty store, got %v", names)
		}
	})

	t.Run("concurrent tasks with the same title do not share temp files", func(t *testing.T) {
		store := newTestStore(t)

		var started sync.WaitGroup
		started.Add(2)
		fake := &tu.FakeExtractor{
			FetchFunc: func(_ context.Context, url string, opts extractor.FetchOptions) error {
				started.Done()
				started.Wait()
				_, err := tu.WriteOutput(opts.OutputTemplate, "mp4", url)
				return err
			},
		}
		runner := NewRunner(fake, store, time.Second, shared.DiscardLogger())

		urls := []string{"https://youtu.be/one", "https://youtu.be/two"}
		errs := make(chan error, len(urls))
		for i, u := range urls {
			task := NewTask(context.Background(), string(rune('a'+i)), models.FetchRequest{URL: u, Kind: models.KindVideo})
			go func() {
				_, err := runner.Execute(context.Background(), task, route)
				errs <- err
			}()
		}
		for range urls {
			if err := <-errs; err != nil {
				t.Fatalf("Execute failed: %v", err)
			}
		}

		calls := fake.FetchCalls()
		if calls[0].OutputTemplate == calls[1].OutputTemplate {
			t.Error("tasks shared an output template")
		}

		names := listDir(t, store.Dir())
		if len(names) != 1 || names[0] != "Test Clip.mp4" {
			t.Fatalf("expected a single promoted file, got %v", names)
		}
		got := tu.MustReadFile(t, filepath.Join(store.Dir(), names[0]))
		if got != urls[0] && got != urls[1] {
			t.Errorf("final file mixes content: %q", got)
		}
	})
}
