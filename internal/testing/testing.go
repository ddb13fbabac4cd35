// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/desertthunder/mediafetch/internal/extractor"
	"github.com/desertthunder/mediafetch/internal/models"
)

// FakeExtractor is a test double for [extractor.Client].
//
// With no funcs set, Probe returns a YouTube clip titled "Test Clip" and Fetch
// writes a small file for the requested kind while emitting three ticks.
type FakeExtractor struct {
	ProbeFunc func(ctx context.Context, url string, opts extractor.ProbeOptions) (*extractor.MediaInfo, error)
	FetchFunc func(ctx context.Context, url string, opts extractor.FetchOptions) error

	mu         sync.Mutex
	probeCalls []extractor.ProbeOptions
	fetchCalls []extractor.FetchOptions
}

var _ extractor.Client = (*FakeExtractor)(nil)

func (f *FakeExtractor) Probe(ctx context.Context, url string, opts extractor.ProbeOptions) (*extractor.MediaInfo, error) {
	f.mu.Lock()
	f.probeCalls = append(f.probeCalls, opts)
	f.mu.Unlock()

	if f.ProbeFunc != nil {
		return f.ProbeFunc(ctx, url, opts)
	}
	return &extractor.MediaInfo{Title: "Test Clip", ExtractorKey: "Youtube", Uploader: "Tester"}, nil
}

func (f *FakeExtractor) Fetch(ctx context.Context, url string, opts extractor.FetchOptions) error {
	f.mu.Lock()
	f.fetchCalls = append(f.fetchCalls, opts)
	f.mu.Unlock()

	if f.FetchFunc != nil {
		return f.FetchFunc(ctx, url, opts)
	}
	for _, done := range []int{25, 50, 100} {
		if opts.OnProgress != nil {
			opts.OnProgress(extractor.Tick{DownloadedBytes: done, TotalBytes: 100, BytesPerSecond: 1000})
		}
	}
	_, err := WriteOutput(opts.OutputTemplate, opts.Kind.Extension(), "media:"+url)
	return err
}

// ProbeCalls returns a copy of the recorded probe options.
func (f *FakeExtractor) ProbeCalls() []extractor.ProbeOptions {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]extractor.ProbeOptions(nil), f.probeCalls...)
}

// FetchCalls returns a copy of the recorded fetch options.
func (f *FakeExtractor) FetchCalls() []extractor.FetchOptions {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]extractor.FetchOptions(nil), f.fetchCalls...)
}

// WriteOutput fills a yt-dlp output template with ext and writes content there.
func WriteOutput(template, ext, content string) (string, error) {
	if !strings.Contains(template, "%(ext)s") {
		return "", fmt.Errorf("template %q has no extension placeholder", template)
	}
	path := strings.ReplaceAll(template, "%(ext)s", ext)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", err
	}
	return path, nil
}

// ProxyFailures returns a ProbeFunc that fails on every proxied route and succeeds direct.
func ProxyFailures(message string) func(ctx context.Context, url string, opts extractor.ProbeOptions) (*extractor.MediaInfo, error) {
	return func(ctx context.Context, url string, opts extractor.ProbeOptions) (*extractor.MediaInfo, error) {
		if opts.Proxy != "" {
			return nil, errors.New(message)
		}
		return &extractor.MediaInfo{Title: "Test Clip", ExtractorKey: "Youtube"}, nil
	}
}

// Drain collects events until the channel closes.
func Drain(events <-chan models.ProgressEvent) []models.ProgressEvent {
	var out []models.ProgressEvent
	for ev := range events {
		out = append(out, ev)
	}
	return out
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertFileMissing(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("File should not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
