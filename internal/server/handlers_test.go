package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/mediafetch/internal/artifacts"
	"github.com/desertthunder/mediafetch/internal/extractor"
	"github.com/desertthunder/mediafetch/internal/models"
	"github.com/desertthunder/mediafetch/internal/routes"
	"github.com/desertthunder/mediafetch/internal/shared"
	"github.com/desertthunder/mediafetch/internal/tasks"
	tu "github.com/desertthunder/mediafetch/internal/testing"
)

type fixture struct {
	api     *API
	service *tasks.Service
	store   *artifacts.Store
	handler http.Handler
}

func newFixture(t *testing.T, client extractor.Client, opts ...func(*APIOpts)) *fixture {
	t.Helper()

	store, err := artifacts.NewStore(t.TempDir(), shared.DiscardLogger())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	svc := tasks.NewService(tasks.ServiceOpts{
		Client:  client,
		Store:   store,
		Routes:  routes.NewSelector(shared.NetworkConfig{}),
		Logger:  shared.DiscardLogger(),
		Timeout: time.Second,
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = svc.Shutdown(ctx)
	})

	apiOpts := APIOpts{Service: svc, Store: store, Logger: shared.DiscardLogger()}
	for _, o := range opts {
		o(&apiOpts)
	}
	api := NewAPI(apiOpts)

	router := NewBasicRouter()
	router.Use(RequestID(), Recovery(shared.DiscardLogger()))
	api.Register(router)

	return &fixture{api: api, service: svc, store: store, handler: router}
}

func (f *fixture) do(method, target, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(method, target, r))
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("invalid JSON body %q: %v", rec.Body.String(), err)
	}
	return v
}

type frame struct {
	Status      string   `json:"status"`
	Percent     *float64 `json:"percent"`
	Speed       string   `json:"speed"`
	ETA         string   `json:"eta"`
	DownloadURL string   `json:"download_url"`
	Message     string   `json:"message"`
}

func parseFrames(t *testing.T, body string) []frame {
	t.Helper()
	var frames []frame
	for _, chunk := range strings.Split(body, "\n\n") {
		if chunk == "" {
			continue
		}
		data, ok := strings.CutPrefix(chunk, "data: ")
		if !ok {
			t.Fatalf("malformed frame %q", chunk)
		}
		var f frame
		if err := json.Unmarshal([]byte(data), &f); err != nil {
			t.Fatalf("invalid frame JSON %q: %v", data, err)
		}
		frames = append(frames, f)
	}
	return frames
}

func TestVideoInfo(t *testing.T) {
	t.Run("returns formatted details", func(t *testing.T) {
		views := int64(1234567)
		duration := 3725.0
		fake := &tu.FakeExtractor{
			ProbeFunc: func(context.Context, string, extractor.ProbeOptions) (*extractor.MediaInfo, error) {
				return &extractor.MediaInfo{
					Title:        "Big Talk",
					ExtractorKey: "Youtube",
					Uploader:     "Speaker",
					Thumbnail:    "https://img/t.jpg",
					Duration:     &duration,
					ViewCount:    &views,
				}, nil
			},
		}
		f := newFixture(t, fake)

		rec := f.do(http.MethodPost, "/get-video-info", `{"url":"https://youtu.be/abc"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		got := decodeBody[models.DetailsResponse](t, rec)
		want := models.DetailsResponse{
			Type:         models.PlatformYouTube,
			Title:        "Big Talk",
			Author:       "Speaker",
			ThumbnailURL: "https://img/t.jpg",
			Duration:     "01:02:05",
			Views:        "1,234,567",
			URL:          "https://youtu.be/abc",
		}
		if got != want {
			t.Errorf("got %+v\nwant %+v", got, want)
		}
	})

	tc := []struct {
		name string
		body string
		want string
	}{
		{name: "missing url", body: `{}`, want: msgMissingURL},
		{name: "blank url", body: `{"url":"   "}`, want: msgMissingURL},
		{name: "not json", body: `url=https://youtu.be/abc`, want: "invalid input: request body must be a JSON object"},
		{name: "invalid url", body: `{"url":"javascript:alert(1)"}`, want: ""},
	}
	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			fake := &tu.FakeExtractor{}
			f := newFixture(t, fake)

			rec := f.do(http.MethodPost, "/get-video-info", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
			body := decodeBody[errorBody](t, rec)
			if tt.want != "" && body.Error != tt.want {
				t.Errorf("error = %q, want %q", body.Error, tt.want)
			}
			if len(fake.ProbeCalls()) != 0 {
				t.Error("extractor should not be called for invalid input")
			}
		})
	}

	t.Run("classified extractor failure", func(t *testing.T) {
		fake := &tu.FakeExtractor{
			ProbeFunc: func(context.Context, string, extractor.ProbeOptions) (*extractor.MediaInfo, error) {
				return nil, errors.New("ERROR: [instagram] xyz: Requested content is not available, rate-limit reached or login required")
			},
		}
		f := newFixture(t, fake)

		rec := f.do(http.MethodPost, "/get-video-info", `{"url":"https://www.instagram.com/p/xyz/"}`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		if body := decodeBody[errorBody](t, rec); body.Error != tasks.MsgRateLimited {
			t.Errorf("error = %q", body.Error)
		}
	})
}

func TestDownloadStream(t *testing.T) {
	t.Run("full scenario", func(t *testing.T) {
		fake := &tu.FakeExtractor{}
		f := newFixture(t, fake)

		rec := f.do(http.MethodGet, "/download?url=https://youtu.be/abc&type=audio", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
			t.Errorf("content type = %q", ct)
		}

		frames := parseFrames(t, rec.Body.String())
		if len(frames) < 2 {
			t.Fatalf("expected at least 2 frames, got %d", len(frames))
		}
		first := frames[0]
		if first.Status != models.StatusProgress || *first.Percent != 1 || first.Speed != "Initializing..." {
			t.Errorf("unexpected first frame %+v", first)
		}

		finished := 0
		last := 0.0
		for _, fr := range frames {
			switch fr.Status {
			case models.StatusProgress:
				if *fr.Percent < last {
					t.Errorf("percent decreased from %v to %v", last, *fr.Percent)
				}
				last = *fr.Percent
			case models.StatusFinished:
				finished++
			default:
				t.Errorf("unexpected frame %+v", fr)
			}
		}
		if finished != 1 || frames[len(frames)-1].Status != models.StatusFinished {
			t.Fatalf("expected exactly one trailing finished frame, got %+v", frames)
		}

		link := frames[len(frames)-1].DownloadURL
		if link != "/get-file/Test%20Clip.mp3" {
			t.Errorf("download url = %q", link)
		}

		file := f.do(http.MethodGet, link, "")
		if file.Code != http.StatusOK {
			t.Fatalf("expected 200 for file, got %d", file.Code)
		}
		if got := file.Body.String(); got != "media:https://youtu.be/abc" {
			t.Errorf("file body = %q", got)
		}
		if cd := file.Header().Get("Content-Disposition"); !strings.HasPrefix(cd, "attachment") || !strings.Contains(cd, "Test Clip.mp3") {
			t.Errorf("content disposition = %q", cd)
		}
		tu.AssertFileMissing(t, filepath.Join(f.store.Dir(), "Test Clip.mp3"))

		if again := f.do(http.MethodGet, link, ""); again.Code != http.StatusNotFound {
			t.Errorf("second request should 404, got %d", again.Code)
		}
	})

	t.Run("failure ends with one error frame", func(t *testing.T) {
		fake := &tu.FakeExtractor{
			ProbeFunc: func(context.Context, string, extractor.ProbeOptions) (*extractor.MediaInfo, error) {
				return nil, errors.New("ERROR: [youtube] abc: Video unavailable")
			},
		}
		f := newFixture(t, fake)

		frames := parseFrames(t, f.do(http.MethodGet, "/download?url=https://youtu.be/abc", "").Body.String())
		if len(frames) != 2 {
			t.Fatalf("expected 2 frames, got %+v", frames)
		}
		if frames[1].Status != models.StatusError || frames[1].Message != tasks.MsgUnavailable {
			t.Errorf("unexpected terminal frame %+v", frames[1])
		}
	})

	tc := []struct {
		name   string
		target string
	}{
		{name: "missing url", target: "/download"},
		{name: "invalid url", target: "/download?url=notaurl"},
		{name: "unknown type", target: "/download?url=https://youtu.be/abc&type=gif"},
	}
	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			fake := &tu.FakeExtractor{}
			f := newFixture(t, fake)

			rec := f.do(http.MethodGet, tt.target, "")
			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", rec.Code)
			}
			if len(f.service.Tasks()) != 0 || len(fake.ProbeCalls()) != 0 {
				t.Error("no task should be spawned")
			}
		})
	}
}

func TestStartDownloadAndProgressStream(t *testing.T) {
	gate := make(chan struct{})
	fake := &tu.FakeExtractor{
		ProbeFunc: func(ctx context.Context, _ string, _ extractor.ProbeOptions) (*extractor.MediaInfo, error) {
			select {
			case <-gate:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			return &extractor.MediaInfo{Title: "Gated", ExtractorKey: "Pinterest"}, nil
		},
	}
	f := newFixture(t, fake)
	srv := httptest.NewServer(f.handler)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/start-download", "application/json", strings.NewReader(`{"url":"https://pin.it/abc","type":"video"}`))
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	var started map[string]string
	_ = json.NewDecoder(resp.Body).Decode(&started)
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted || started["task_id"] == "" {
		t.Fatalf("unexpected start response %d %v", resp.StatusCode, started)
	}

	stream, err := http.Get(srv.URL + "/progress-stream/" + started["task_id"])
	if err != nil {
		t.Fatalf("stream failed: %v", err)
	}
	defer stream.Body.Close()

	reader := bufio.NewReader(stream.Body)
	line, err := reader.ReadString('\n')
	if err != nil || !strings.Contains(line, `"percent":1`) {
		t.Fatalf("expected initial frame, got %q %v", line, err)
	}
	close(gate)

	rest, _ := io.ReadAll(reader)
	frames := parseFrames(t, strings.TrimPrefix(string(rest), "\n"))
	if len(frames) == 0 || frames[len(frames)-1].DownloadURL != "/get-file/Gated.mp4" {
		t.Errorf("unexpected frames %+v", frames)
	}

	missing := f.do(http.MethodGet, "/progress-stream/unknown", "")
	got := parseFrames(t, missing.Body.String())
	if len(got) != 1 || got[0].Status != models.StatusError || got[0].Message != "Task ID not found." {
		t.Errorf("unexpected frames for unknown task %+v", got)
	}
}

func TestGetFile(t *testing.T) {
	f := newFixture(t, &tu.FakeExtractor{})
	write := func(name, content string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(f.store.Dir(), name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	t.Run("alternate extension", func(t *testing.T) {
		write("clip.mp3", "audio")
		rec := f.do(http.MethodGet, "/get-file/clip.mp4", "")
		if rec.Code != http.StatusOK || rec.Body.String() != "audio" {
			t.Errorf("got %d %q", rec.Code, rec.Body.String())
		}
	})

	t.Run("head leaves the file for the download", func(t *testing.T) {
		write("keep.mp4", "video")
		head := f.do(http.MethodHead, "/get-file/keep.mp4", "")
		if head.Code != http.StatusOK || head.Body.Len() != 0 {
			t.Errorf("HEAD got %d %q", head.Code, head.Body.String())
		}
		if cl := head.Header().Get("Content-Length"); cl != "5" {
			t.Errorf("Content-Length = %q, want 5", cl)
		}
		tu.AssertFileExists(t, filepath.Join(f.store.Dir(), "keep.mp4"))

		rec := f.do(http.MethodGet, "/get-file/keep.mp4", "")
		if rec.Code != http.StatusOK || rec.Body.String() != "video" {
			t.Errorf("GET got %d %q", rec.Code, rec.Body.String())
		}
		if again := f.do(http.MethodHead, "/get-file/keep.mp4", ""); again.Code != http.StatusNotFound {
			t.Errorf("HEAD after delivery got %d, want 404", again.Code)
		}
	})

	t.Run("not found", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/get-file/nothing.mp4", "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
		if body := decodeBody[errorBody](t, rec); body.Error != msgNotFound {
			t.Errorf("error = %q", body.Error)
		}
	})

	t.Run("traversal is rejected", func(t *testing.T) {
		secret := filepath.Join(filepath.Dir(f.store.Dir()), "secret.mp4")
		if err := os.WriteFile(secret, []byte("secret"), 0644); err != nil {
			t.Fatal(err)
		}

		for _, name := range []string{"../secret.mp4", "..", `..\secret.mp4`} {
			req := httptest.NewRequest(http.MethodGet, "/get-file/x", nil)
			req.SetPathValue("filename", name)
			rec := httptest.NewRecorder()
			f.api.GetFile(rec, req)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("%q: expected 400, got %d", name, rec.Code)
			}
		}
		tu.AssertFileExists(t, secret)
	})
}

func TestTaskEndpoints(t *testing.T) {
	started := make(chan struct{})
	fake := &tu.FakeExtractor{
		FetchFunc: func(ctx context.Context, _ string, _ extractor.FetchOptions) error {
			close(started)
			<-ctx.Done()
			return ctx.Err()
		},
	}
	f := newFixture(t, fake)

	task, err := f.service.Start(models.FetchRequest{URL: "https://youtu.be/abc", Kind: models.KindVideo})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	<-started

	list := decodeBody[struct {
		Tasks []tasks.Snapshot `json:"tasks"`
	}](t, f.do(http.MethodGet, "/tasks", ""))
	if len(list.Tasks) != 1 || list.Tasks[0].ID != task.ID || list.Tasks[0].State != models.TaskDownloading {
		t.Fatalf("unexpected tasks %+v", list.Tasks)
	}

	if rec := f.do(http.MethodDelete, "/tasks/"+task.ID, ""); rec.Code != http.StatusAccepted {
		t.Errorf("expected 202, got %d", rec.Code)
	}
	events := tu.Drain(task.Events(context.Background()))
	if last := events[len(events)-1]; last != (models.Failed{Message: "The download was cancelled."}) {
		t.Errorf("terminal = %#v", last)
	}
	f.service.Wait()

	if rec := f.do(http.MethodDelete, "/tasks/"+task.ID, ""); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 after completion, got %d", rec.Code)
	}
}

type fakeHistory struct {
	records  []*models.DownloadRecord
	criteria map[string]any
	err      error
}

func (h *fakeHistory) List(criteria map[string]any) ([]*models.DownloadRecord, error) {
	h.criteria = criteria
	return h.records, h.err
}

func TestHistory(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		f := newFixture(t, &tu.FakeExtractor{})
		if rec := f.do(http.MethodGet, "/history", ""); rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("lists records", func(t *testing.T) {
		rec := models.NewDownloadRecord(models.FetchRequest{URL: "https://youtu.be/abc", Kind: models.KindAudio})
		rec.SetID("r1")
		rec.SetStatus(models.TaskFinished)
		history := &fakeHistory{records: []*models.DownloadRecord{rec}}
		f := newFixture(t, &tu.FakeExtractor{}, func(o *APIOpts) { o.History = history })

		resp := f.do(http.MethodGet, "/history?limit=5&status=finished&type=audio", "")
		if resp.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.Code)
		}
		body := decodeBody[struct {
			Downloads []models.RecordView `json:"downloads"`
		}](t, resp)
		if len(body.Downloads) != 1 || body.Downloads[0].ID != "r1" || body.Downloads[0].Status != models.TaskFinished {
			t.Errorf("unexpected body %+v", body)
		}
		if history.criteria["limit"] != 5 || history.criteria["status"] != "finished" || history.criteria["kind"] != "audio" {
			t.Errorf("unexpected criteria %v", history.criteria)
		}
	})

	t.Run("bad limit", func(t *testing.T) {
		f := newFixture(t, &tu.FakeExtractor{}, func(o *APIOpts) { o.History = &fakeHistory{} })
		if rec := f.do(http.MethodGet, "/history?limit=-1", ""); rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("storage failure is not echoed", func(t *testing.T) {
		f := newFixture(t, &tu.FakeExtractor{}, func(o *APIOpts) { o.History = &fakeHistory{err: errors.New("disk I/O error")} })
		rec := f.do(http.MethodGet, "/history", "")
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", rec.Code)
		}
		if body := decodeBody[errorBody](t, rec); body.Error != msgInternal {
			t.Errorf("error = %q", body.Error)
		}
	})
}

func TestHealth(t *testing.T) {
	tc := []struct {
		name    string
		check   HealthCheck
		ytdlp   bool
		version string
	}{
		{name: "no check", check: nil},
		{name: "available", check: func(context.Context) (string, error) { return "2025.01.01", nil }, ytdlp: true, version: "2025.01.01"},
		{name: "missing", check: func(context.Context) (string, error) { return "", shared.ErrExtractorMissing }},
	}
	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, &tu.FakeExtractor{}, func(o *APIOpts) { o.Health = tt.check })
			rec := f.do(http.MethodGet, "/health", "")
			body := decodeBody[healthBody](t, rec)
			if rec.Code != http.StatusOK || body.Status != "ok" || body.YTDLP != tt.ytdlp || body.Version != tt.version {
				t.Errorf("unexpected health %d %+v", rec.Code, body)
			}
		})
	}
}

func TestRateLimitedStart(t *testing.T) {
	f := newFixture(t, &tu.FakeExtractor{}, func(o *APIOpts) {
		o.RateLimit = 0.001
		o.Burst = 1
	})

	if rec := f.do(http.MethodPost, "/start-download", `{"url":"https://youtu.be/a"}`); rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	rec := f.do(http.MethodPost, "/start-download", `{"url":"https://youtu.be/b"}`)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", rec.Code)
	}
	if body := decodeBody[errorBody](t, rec); body.Error != msgRateLimited {
		t.Errorf("error = %q", body.Error)
	}
}
