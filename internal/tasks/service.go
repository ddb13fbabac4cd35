package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mediafetch/internal/artifacts"
	"github.com/desertthunder/mediafetch/internal/extractor"
	"github.com/desertthunder/mediafetch/internal/models"
	"github.com/desertthunder/mediafetch/internal/shared"
	"golang.org/x/time/rate"
)

// RouteSource supplies ordered route candidates; *routes.Selector implements it.
type RouteSource interface {
	Candidates() []models.RouteCandidate
}

// History persists download records. A nil History disables persistence.
type History interface {
	Create(rec *models.DownloadRecord) error
	Update(rec *models.DownloadRecord) error
}

// ServiceOpts contains the dependencies of a [Service].
type ServiceOpts struct {
	Client    extractor.Client
	Store     *artifacts.Store
	Routes    RouteSource
	History   History
	Logger    *log.Logger
	Timeout   time.Duration // per-attempt socket timeout
	RateLimit float64       // new downloads per second; zero disables limiting
	Burst     int
}

// Service is the entry point for metadata lookups and background downloads.
type Service struct {
	client   extractor.Client
	runner   *Runner
	routes   RouteSource
	history  History
	registry *Registry
	limiter  *rate.Limiter
	logger   *log.Logger
	timeout  time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewService builds a service; downloads run under a context owned by the service.
func NewService(opts ServiceOpts) *Service {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}

	limiter := rate.NewLimiter(rate.Inf, opts.Burst)
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), opts.Burst)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		client:   opts.Client,
		runner:   NewRunner(opts.Client, opts.Store, opts.Timeout, opts.Logger),
		routes:   opts.Routes,
		history:  opts.History,
		registry: NewRegistry(),
		limiter:  limiter,
		logger:   opts.Logger,
		timeout:  opts.Timeout,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Info looks up display metadata for rawURL, trying every route.
func (s *Service) Info(ctx context.Context, rawURL string) (*models.MediaDetails, error) {
	u, err := models.ValidateURL(rawURL)
	if err != nil {
		return nil, err
	}

	info, err := RunWithFallback(ctx, s.logger, s.routes.Candidates(),
		func(ctx context.Context, route models.RouteCandidate) (*extractor.MediaInfo, error) {
			return s.client.Probe(ctx, u, extractor.ProbeOptions{Proxy: route.Proxy, Timeout: s.timeout})
		})
	if err != nil {
		return nil, err
	}

	details := info.Details(u)
	return &details, nil
}

// Start registers a task for req and downloads it in the background.
//
// The returned task's first event is already queued. Start fails fast with
// [shared.ErrRateLimited] when new downloads arrive faster than configured.
func (s *Service) Start(req models.FetchRequest) (*Task, error) {
	if !req.Kind.Valid() {
		return nil, fmt.Errorf("%w: unknown media kind %q", shared.ErrInvalidInput, req.Kind)
	}
	if _, err := models.ValidateURL(req.URL); err != nil {
		return nil, err
	}
	if s.ctx.Err() != nil {
		return nil, shared.ErrShuttingDown
	}
	if !s.limiter.Allow() {
		return nil, shared.ErrRateLimited
	}

	task := NewTask(s.ctx, shared.GenerateID(), req)
	if err := s.registry.Add(task); err != nil {
		task.Cancel()
		return nil, err
	}

	rec := s.recordStart(task)

	s.wg.Add(1)
	go s.run(task, rec)
	return task, nil
}

func (s *Service) run(task *Task, rec *models.DownloadRecord) {
	defer s.wg.Done()
	defer task.Cancel()
	defer s.registry.Remove(task.ID)

	logger := shared.WithLogger(s.logger, "task", task.ID)
	logger.Info("download started", "url", task.Request.URL, "type", task.Request.Kind)

	defer func() {
		if p := recover(); p != nil {
			logger.Error("download panicked", "panic", p)
			task.setMessage(MsgInvalid)
			task.Publish(models.Failed{Message: MsgInvalid})
			task.setState(models.TaskFailed)
			s.recordEnd(task, rec, fmt.Errorf("panic: %v", p))
		}
	}()

	_, err := RunWithFallback(task.Context(), logger, s.routes.Candidates(),
		func(ctx context.Context, route models.RouteCandidate) (ArtifactRef, error) {
			return s.runner.Execute(ctx, task, route)
		})

	switch {
	case err == nil:
		task.setState(models.TaskFinished)
	case errors.Is(err, context.Canceled):
		msg := UserMessage(err)
		task.setMessage(msg)
		task.Publish(models.Failed{Message: msg})
		task.setState(models.TaskCancelled)
		logger.Info("download cancelled")
	default:
		msg := UserMessage(err)
		task.setMessage(msg)
		task.Publish(models.Failed{Message: msg})
		task.setState(models.TaskFailed)

		var fe *FallbackError
		if errors.As(err, &fe) {
			logger.Error("download failed", "category", fe.Category, "attempts", len(fe.Attempts), "detail", fe.Detail())
		} else {
			logger.Error("download failed", "err", err)
		}
	}

	s.recordEnd(task, rec, err)
}

func (s *Service) recordStart(task *Task) *models.DownloadRecord {
	if s.history == nil {
		return nil
	}
	rec := models.NewDownloadRecord(task.Request)
	rec.SetID(task.ID)
	if err := s.history.Create(rec); err != nil {
		s.logger.Warn("failed to record download", "task", task.ID, "err", err)
		return nil
	}
	return rec
}

func (s *Service) recordEnd(task *Task, rec *models.DownloadRecord, err error) {
	if s.history == nil || rec == nil {
		return
	}
	snap := task.Snapshot()
	rec.SetPlatform(snap.Platform)
	rec.SetTitle(snap.Title)
	rec.SetFilename(snap.Filename)
	rec.SetAttempts(snap.Attempts)
	rec.SetStatus(snap.State)
	if err != nil {
		rec.SetMessage(UserMessage(err))
	}
	if uerr := s.history.Update(rec); uerr != nil {
		s.logger.Warn("failed to update download record", "task", task.ID, "err", uerr)
	}
}

// Get returns a running task.
func (s *Service) Get(id string) (*Task, error) { return s.registry.Get(id) }

// Cancel stops a running task.
func (s *Service) Cancel(id string) error {
	t, err := s.registry.Get(id)
	if err != nil {
		return err
	}
	t.Cancel()
	return nil
}

// Tasks lists running tasks.
func (s *Service) Tasks() []Snapshot { return s.registry.Snapshots() }

// Shutdown cancels all running downloads and waits for their workers, or for ctx.
func (s *Service) Shutdown(ctx context.Context) error {
	s.cancel()
	s.registry.CancelAll()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %d downloads still running", shared.ErrTimeout, s.registry.Len())
	}
}

// Wait blocks until every started download has finished.
func (s *Service) Wait() { s.wg.Wait() }
