package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/mediafetch/internal/artifacts"
	"github.com/desertthunder/mediafetch/internal/models"
	"github.com/desertthunder/mediafetch/internal/shared"
	"github.com/desertthunder/mediafetch/internal/tasks"
	"github.com/desertthunder/mediafetch/internal/ui"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

const defaultFetchConcurrency = 3

// reporter receives the lifecycle of each fetched URL, by argument index.
type reporter interface {
	Started(i int, taskID string)
	Event(i int, ev models.ProgressEvent)
	Saved(i int, path string)
	Rejected(i int, err error)
	Done()
}

// Fetch downloads every URL argument through the task service and copies the results to --output.
func (r *Runner) Fetch(ctx context.Context, cmd *cli.Command) error {
	urls := cmd.Args().Slice()
	if len(urls) == 0 {
		return fmt.Errorf("%w: at least one URL", shared.ErrMissingArgument)
	}
	kind, err := models.ParseMediaKind(cmd.String("type"))
	if err != nil {
		return err
	}
	outDir := cmd.String("output")
	if err := shared.EnsureDir(outDir); err != nil {
		return err
	}

	interactive := !cmd.Bool("plain") && r.isTerminal()
	if interactive {
		fileLogger, err := shared.NewFileLogger(cmd.String("log-file"))
		if err != nil {
			return fmt.Errorf("failed to create file logger: %w", err)
		}
		r.SetLogger(fileLogger)
	}

	st, err := r.open(stackOpts{history: true})
	if err != nil {
		return err
	}
	defer st.Close(context.Background())

	batch := newFetchBatch(ctx, st, urls, kind, outDir, cmd.Int("concurrency"))
	defer batch.CancelAll()

	if !interactive {
		rep := newPlainReporter(r.output, urls)
		batch.Run(rep)
		return rep.Err()
	}

	model := ui.NewModel(urls, batch.Cancel)
	p := tea.NewProgram(model, tea.WithContext(ctx), tea.WithOutput(r.output))
	rep := &programReporter{program: p}

	go batch.Run(rep)

	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("error running TUI: %w", err)
	}

	// Quitting early cancels whatever is still running or queued.
	batch.CancelAll()
	batch.Wait()

	if _, failed := model.Summary(); failed > 0 {
		return fmt.Errorf("%w: %d of %d downloads failed", shared.ErrUpstreamUnavailable, failed, len(urls))
	}
	return nil
}

func (r *Runner) isTerminal() bool {
	f, ok := r.output.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

// fetchBatch runs a set of URLs through the service with bounded concurrency.
type fetchBatch struct {
	ctx    context.Context
	stop   context.CancelFunc
	stack  *stack
	urls   []string
	kind   models.MediaKind
	outDir string
	limit  int

	mu    sync.Mutex
	tasks []*tasks.Task
	done  chan struct{}
}

func newFetchBatch(ctx context.Context, st *stack, urls []string, kind models.MediaKind, outDir string, limit int) *fetchBatch {
	if limit <= 0 {
		limit = defaultFetchConcurrency
	}
	ctx, stop := context.WithCancel(ctx)
	return &fetchBatch{
		ctx:    ctx,
		stop:   stop,
		stack:  st,
		urls:   urls,
		kind:   kind,
		outDir: outDir,
		limit:  limit,
		tasks:  make([]*tasks.Task, len(urls)),
		done:   make(chan struct{}),
	}
}

// Run fetches every URL and calls rep.Done when all have ended.
func (b *fetchBatch) Run(rep reporter) {
	defer close(b.done)

	var g errgroup.Group
	g.SetLimit(b.limit)
	for i, u := range b.urls {
		g.Go(func() error {
			b.fetchOne(b.ctx, rep, i, u)
			return nil
		})
	}
	g.Wait()
	rep.Done()
}

// Wait blocks until Run has returned.
func (b *fetchBatch) Wait() { <-b.done }

// Cancel stops the download at index i, if it started.
func (b *fetchBatch) Cancel(i int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if i >= 0 && i < len(b.tasks) && b.tasks[i] != nil {
		b.tasks[i].Cancel()
	}
}

// CancelAll stops every started download and keeps queued ones from starting.
func (b *fetchBatch) CancelAll() {
	b.stop()
	for i := range b.urls {
		b.Cancel(i)
	}
}

func (b *fetchBatch) fetchOne(ctx context.Context, rep reporter, i int, rawURL string) {
	if err := ctx.Err(); err != nil {
		rep.Rejected(i, err)
		return
	}

	req, err := models.NewFetchRequest(rawURL, b.kind.String())
	if err != nil {
		rep.Rejected(i, err)
		return
	}
	task, err := b.stack.service.Start(req)
	if err != nil {
		rep.Rejected(i, err)
		return
	}

	b.mu.Lock()
	b.tasks[i] = task
	b.mu.Unlock()
	rep.Started(i, task.ID)

	var finished bool
	for ev := range task.Events(ctx) {
		rep.Event(i, ev)
		switch ev.(type) {
		case models.Finished:
			finished = true
		case models.Failed:
			return
		}
	}
	if !finished {
		rep.Rejected(i, errors.Join(ctx.Err(), errors.New("download did not finish")))
		return
	}

	path, err := saveArtifact(b.stack.store, task.Snapshot().Filename, b.outDir)
	if err != nil {
		rep.Rejected(i, err)
		return
	}
	rep.Saved(i, path)
}

// saveArtifact claims name from the store and copies it into dir, consuming the stored file.
func saveArtifact(store *artifacts.Store, name, dir string) (string, error) {
	a, err := store.Claim(name)
	if err != nil {
		return "", err
	}
	defer a.Release()

	dst := filepath.Join(dir, a.Name)
	out, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("%w: create %s: %v", shared.ErrResource, dst, err)
	}
	if _, err := io.Copy(out, a.File); err != nil {
		out.Close()
		os.Remove(dst)
		return "", fmt.Errorf("%w: copy %s: %v", shared.ErrResource, a.Name, err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("%w: close %s: %v", shared.ErrResource, dst, err)
	}
	return dst, nil
}

// programReporter forwards to a running bubbletea program.
type programReporter struct {
	program *tea.Program
}

func (p *programReporter) Started(i int, id string) { p.program.Send(ui.StartedMsg(i, id)) }

func (p *programReporter) Event(i int, ev models.ProgressEvent) { p.program.Send(ui.EventMsg(i, ev)) }

func (p *programReporter) Saved(i int, path string) { p.program.Send(ui.SavedMsg(i, path)) }

func (p *programReporter) Rejected(i int, err error) { p.program.Send(ui.RejectedMsg(i, err)) }

func (p *programReporter) Done() { p.program.Send(ui.AllDoneMsg()) }

// plainReporter prints one line per state change and every tenth percent.
type plainReporter struct {
	mu     sync.Mutex
	w      io.Writer
	labels []string
	steps  []int
	failed int
}

func newPlainReporter(w io.Writer, labels []string) *plainReporter {
	return &plainReporter{w: w, labels: labels, steps: make([]int, len(labels))}
}

func (p *plainReporter) printf(i int, format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "[%d] %s: %s\n", i+1, p.labels[i], fmt.Sprintf(format, args...))
}

func (p *plainReporter) Started(i int, id string) { p.printf(i, "started (task %s)", id) }

func (p *plainReporter) Event(i int, ev models.ProgressEvent) {
	switch e := ev.(type) {
	case models.Progress:
		step := int(e.Percent) / 10
		p.mu.Lock()
		show := step > p.steps[i]
		if show {
			p.steps[i] = step
		}
		p.mu.Unlock()
		if show {
			p.printf(i, "%5.1f%%  %s  eta %s", e.Percent, e.Speed, e.ETA)
		}
	case models.Finished:
		p.printf(i, "downloaded")
	case models.Failed:
		p.mu.Lock()
		p.failed++
		p.mu.Unlock()
		p.printf(i, "failed: %s", e.Message)
	}
}

func (p *plainReporter) Saved(i int, path string) { p.printf(i, "saved to %s", path) }

func (p *plainReporter) Rejected(i int, err error) {
	p.mu.Lock()
	p.failed++
	p.mu.Unlock()
	p.printf(i, "failed: %v", err)
}

func (p *plainReporter) Done() {}

// Err summarizes failures once the batch is done.
func (p *plainReporter) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failed > 0 {
		return fmt.Errorf("%w: %d of %d downloads failed", shared.ErrUpstreamUnavailable, p.failed, len(p.labels))
	}
	return nil
}
