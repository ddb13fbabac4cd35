package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mediafetch/internal/artifacts"
	"github.com/desertthunder/mediafetch/internal/models"
	"github.com/desertthunder/mediafetch/internal/shared"
	"github.com/desertthunder/mediafetch/internal/tasks"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// defaultHistoryLimit applies when GET /history has no limit parameter.
const defaultHistoryLimit = 50

// HistoryLister reads recent download records; *repositories.DownloadRepository implements it.
type HistoryLister interface {
	List(criteria map[string]any) ([]*models.DownloadRecord, error)
}

// HealthCheck reports the extractor version or why it is unusable.
type HealthCheck func(ctx context.Context) (string, error)

// APIOpts contains the dependencies of an [API].
type APIOpts struct {
	Service   *tasks.Service
	Store     *artifacts.Store
	History   HistoryLister // optional
	Health    HealthCheck   // optional
	Logger    *log.Logger
	RateLimit float64 // per-client requests per second on extractor endpoints
	Burst     int
}

// API holds the HTTP handlers of the service.
type API struct {
	service *tasks.Service
	store   *artifacts.Store
	history HistoryLister
	health  HealthCheck
	logger  *log.Logger
	limit   Middleware
}

// NewAPI creates the handler set.
func NewAPI(opts APIOpts) *API {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	return &API{
		service: opts.Service,
		store:   opts.Store,
		history: opts.History,
		health:  opts.Health,
		logger:  opts.Logger,
		limit:   RateLimit(opts.RateLimit, opts.Burst),
	}
}

// Register adds every endpoint to r.
func (a *API) Register(r Router) {
	r.Handle(http.MethodPost, "/get-video-info", a.limit(http.HandlerFunc(a.VideoInfo)))
	r.Handle(http.MethodGet, "/download", a.limit(http.HandlerFunc(a.Download)))
	r.Handle(http.MethodPost, "/start-download", a.limit(http.HandlerFunc(a.StartDownload)))
	r.Handle(http.MethodGet, "/progress-stream/{id}", http.HandlerFunc(a.ProgressStream))
	r.Handle(http.MethodGet, "/get-file/{filename}", http.HandlerFunc(a.GetFile))
	r.Handle(http.MethodGet, "/tasks", http.HandlerFunc(a.ListTasks))
	r.Handle(http.MethodDelete, "/tasks/{id}", http.HandlerFunc(a.CancelTask))
	r.Handle(http.MethodGet, "/history", http.HandlerFunc(a.History))
	r.Handle(http.MethodGet, "/health", http.HandlerFunc(a.Health))
}

type fetchBody struct {
	URL  string `json:"url"`
	Type string `json:"type"`
}

func (a *API) decode(w http.ResponseWriter, r *http.Request) (fetchBody, error) {
	var body fetchBody
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&body); err != nil {
		return body, fmt.Errorf("%w: request body must be a JSON object", shared.ErrInvalidInput)
	}
	if strings.TrimSpace(body.URL) == "" {
		return body, errors.New(msgMissingURL)
	}
	return body, nil
}

func (a *API) requestLogger(r *http.Request) *log.Logger {
	return shared.WithLogger(a.logger, "request_id", RequestIDFrom(r.Context()))
}

// VideoInfo handles POST /get-video-info.
func (a *API) VideoInfo(w http.ResponseWriter, r *http.Request) {
	body, err := a.decode(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	details, err := a.service.Info(r.Context(), body.URL)
	if err != nil {
		if errors.Is(r.Context().Err(), context.Canceled) {
			return
		}
		status := statusFor(err)
		if errors.Is(err, shared.ErrUpstreamUnavailable) {
			status = http.StatusBadRequest
		}
		a.requestLogger(r).Warn("video info failed", "url", body.URL, "status", status, "err", err)
		writeError(w, status, err)
		return
	}

	writeJSON(w, http.StatusOK, details.Response())
}

// Download handles GET /download?url=&type=, streaming progress until the task ends.
func (a *API) Download(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if strings.TrimSpace(q.Get("url")) == "" {
		writeError(w, http.StatusBadRequest, errors.New(msgMissingURL))
		return
	}
	req, err := models.NewFetchRequest(q.Get("url"), q.Get("type"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	task, err := a.service.Start(req)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	a.requestLogger(r).Debug("streaming task", "task", task.ID)
	a.stream(w, r, task.Next)
}

// StartDownload handles POST /start-download and returns the new task's id.
func (a *API) StartDownload(w http.ResponseWriter, r *http.Request) {
	body, err := a.decode(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	req, err := models.NewFetchRequest(body.URL, body.Type)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	task, err := a.service.Start(req)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"task_id": task.ID})
}

// ProgressStream handles GET /progress-stream/{id}. A task has one event stream;
// a second reader only sees the events the first has not consumed.
func (a *API) ProgressStream(w http.ResponseWriter, r *http.Request) {
	task, err := a.service.Get(r.PathValue("id"))
	if err != nil {
		sent := false
		a.stream(w, r, func(context.Context) (models.ProgressEvent, error) {
			if sent {
				return nil, io.EOF
			}
			sent = true
			return models.Failed{Message: "Task ID not found."}, nil
		})
		return
	}
	a.stream(w, r, task.Next)
}

// stream writes events from next as server-sent events until it returns an error.
func (a *API) stream(w http.ResponseWriter, r *http.Request, next func(context.Context) (models.ProgressEvent, error)) {
	rc := http.NewResponseController(w)

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	logger := a.requestLogger(r)
	for {
		ev, err := next(r.Context())
		if err != nil {
			if !errors.Is(err, io.EOF) {
				logger.Debug("event stream closed by client", "err", err)
			}
			return
		}

		data, err := models.MarshalEvent(ev)
		if err != nil {
			logger.Error("failed to encode event", "err", err)
			return
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			logger.Debug("event stream write failed", "err", err)
			return
		}
		if err := rc.Flush(); err != nil {
			logger.Warn("response writer cannot flush", "err", err)
		}
	}
}

// GetFile handles GET /get-file/{filename}. The file is removed once sent.
// HEAD requests only describe the file and leave it in place.
func (a *API) GetFile(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("filename")
	if r.Method == http.MethodHead {
		a.headFile(w, r, name)
		return
	}

	art, err := a.store.Claim(name)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusNotFound {
			err = errors.New(msgNotFound)
		}
		writeError(w, status, err)
		return
	}
	defer art.Release()

	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": art.Name}))
	http.ServeContent(w, r, art.Name, art.ModTime, art.File)
}

func (a *API) headFile(w http.ResponseWriter, r *http.Request, name string) {
	path, err := a.store.Resolve(name)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusNotFound {
			err = errors.New(msgNotFound)
		}
		writeError(w, status, err)
		return
	}
	f, err := os.Open(path)
	if err != nil {
		writeError(w, http.StatusNotFound, errors.New(msgNotFound))
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	served := filepath.Base(path)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": served}))
	http.ServeContent(w, r, served, info.ModTime(), f)
}

// ListTasks handles GET /tasks.
func (a *API) ListTasks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tasks": a.service.Tasks()})
}

// CancelTask handles DELETE /tasks/{id}.
func (a *API) CancelTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := a.service.Cancel(id); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"task_id": id, "status": "cancelling"})
}

// History handles GET /history?limit=&status=&type=.
func (a *API) History(w http.ResponseWriter, r *http.Request) {
	if a.history == nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("%w: history is not configured", shared.ErrNotFound))
		return
	}

	q := r.URL.Query()
	limit := defaultHistoryLimit
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("%w: limit must be a positive integer", shared.ErrInvalidArgument))
			return
		}
		limit = n
	}

	records, err := a.history.List(map[string]any{
		"status": q.Get("status"),
		"kind":   q.Get("type"),
		"limit":  limit,
	})
	if err != nil {
		a.requestLogger(r).Error("failed to list history", "err", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	views := make([]models.RecordView, 0, len(records))
	for _, rec := range records {
		views = append(views, rec.View())
	}
	writeJSON(w, http.StatusOK, map[string]any{"downloads": views})
}

type healthBody struct {
	Status      string `json:"status"`
	YTDLP       bool   `json:"ytdlp"`
	Version     string `json:"version,omitempty"`
	ActiveTasks int    `json:"active_tasks"`
}

// Health handles GET /health.
func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	body := healthBody{Status: "ok", ActiveTasks: len(a.service.Tasks())}
	if a.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		version, err := a.health(ctx)
		if err != nil {
			a.requestLogger(r).Warn("yt-dlp health check failed", "err", err)
		} else {
			body.YTDLP, body.Version = true, version
		}
	}
	writeJSON(w, http.StatusOK, body)
}
