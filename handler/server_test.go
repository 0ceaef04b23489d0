package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"ewintr.nl/ytstats/model"
	"ewintr.nl/ytstats/process"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/exp/slog"
)

type fakeRunner struct {
	mu       sync.Mutex
	calls    int
	canceled bool
	result   *model.RunResult
	err      error
	started  chan struct{}
	release  chan struct{}
	returned chan struct{}
}

func (f *fakeRunner) Run(ctx context.Context) (*model.RunResult, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.returned != nil {
		defer close(f.returned)
	}

	if f.started != nil {
		close(f.started)
		select {
		case <-f.release:
		case <-ctx.Done():
			f.mu.Lock()
			f.canceled = true
			f.mu.Unlock()
			return nil, ctx.Err()
		}
	}
	return f.result, f.err
}

func newTestServer(t *testing.T, runner Runner) *httptest.Server {
	t.Helper()
	return newTestServerContext(t, context.Background(), runner)
}

func newTestServerContext(t *testing.T, ctx context.Context, runner Runner) *httptest.Server {
	t.Helper()
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_total", Help: "Test counter."})
	reg.MustRegister(counter)
	counter.Inc()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := httptest.NewServer(NewServer(ctx, runner, reg, logger))
	t.Cleanup(srv.Close)
	return srv
}

type response struct {
	Message string            `json:"message"`
	Error   string            `json:"error"`
	Details []json.RawMessage `json:"details"`
}

func call(t *testing.T, srv *httptest.Server, method, path string) (int, response) {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, nil)
	if err != nil {
		t.Fatalf("exp nil, got %v", err)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("exp nil, got %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("exp json content type, got %q", ct)
	}
	var body response
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("exp json body, got %v", err)
	}
	return resp.StatusCode, body
}

func TestShiftPath(t *testing.T) {
	for _, tc := range []struct {
		path    string
		expHead string
		expTail string
	}{
		{"/", "", "/"},
		{"/sync", "sync", "/"},
		{"/sync/", "sync", "/"},
		{"/sync/now", "sync", "/now"},
		{"//metrics/../sync", "sync", "/"},
	} {
		t.Run(tc.path, func(t *testing.T) {
			head, tail := ShiftPath(tc.path)
			if head != tc.expHead || tail != tc.expTail {
				t.Errorf("exp %q %q, got %q %q", tc.expHead, tc.expTail, head, tail)
			}
		})
	}
}

func TestServerIndex(t *testing.T) {
	srv := newTestServer(t, &fakeRunner{})

	status, body := call(t, srv, http.MethodGet, "/")
	if status != http.StatusOK {
		t.Errorf("exp 200, got %d", status)
	}
	if body.Message != "ytstats index" {
		t.Errorf("unexp message %q", body.Message)
	}
	if len(body.Details) != 1 {
		t.Fatalf("exp one detail, got %d", len(body.Details))
	}
	var index struct {
		Routes []string `json:"routes"`
	}
	if err := json.Unmarshal(body.Details[0], &index); err != nil {
		t.Fatalf("exp nil, got %v", err)
	}
	if fmt.Sprint(index.Routes) != "[/metrics /sync]" {
		t.Errorf("unexp routes %v", index.Routes)
	}
}

func TestServerNotFound(t *testing.T) {
	srv := newTestServer(t, &fakeRunner{})

	for _, tc := range []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/videos"},
		{http.MethodGet, "/sync"},
		{http.MethodPost, "/sync/now"},
	} {
		t.Run(tc.method+tc.path, func(t *testing.T) {
			status, body := call(t, srv, tc.method, tc.path)
			if status != http.StatusNotFound {
				t.Errorf("exp 404, got %d", status)
			}
			if body.Error == "" {
				t.Error("exp an error message")
			}
		})
	}
}

func TestServerMetrics(t *testing.T) {
	srv := newTestServer(t, &fakeRunner{})

	resp, err := srv.Client().Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("exp nil, got %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("exp 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("exp exposition format, got %q", ct)
	}
	data, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(data), "test_total 1") {
		t.Errorf("exp test counter in output, got %s", data)
	}
}

func TestSync(t *testing.T) {
	runner := &fakeRunner{
		result: &model.RunResult{
			RunID:   "run-1",
			Fetched: 3,
			Updated: []string{"r1", "r3"},
			Failed:  map[string]error{"r2": errors.New("conflict")},
		},
	}
	srv := newTestServer(t, runner)

	status, body := call(t, srv, http.MethodPost, "/sync")
	if status != http.StatusOK {
		t.Fatalf("exp 200, got %d", status)
	}
	if len(body.Details) != 1 {
		t.Fatalf("exp one detail, got %d", len(body.Details))
	}
	var act syncResponse
	if err := json.Unmarshal(body.Details[0], &act); err != nil {
		t.Fatalf("exp nil, got %v", err)
	}
	if act.RunID != "run-1" || fmt.Sprint(act.Updated) != "[r1 r3]" || act.Failed["r2"] != "conflict" {
		t.Errorf("unexp response %+v", act)
	}
}

func TestSyncErrors(t *testing.T) {
	for _, tc := range []struct {
		name      string
		err       error
		expStatus int
	}{
		{
			name:      "stage",
			err:       &process.StageError{Stage: process.StageFetch, Err: errors.New("status 400")},
			expStatus: http.StatusBadGateway,
		},
		{
			name:      "other",
			err:       errors.New("boom"),
			expStatus: http.StatusInternalServerError,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			srv := newTestServer(t, &fakeRunner{err: tc.err})

			status, body := call(t, srv, http.MethodPost, "/sync")
			if status != tc.expStatus {
				t.Errorf("exp %d, got %d", tc.expStatus, status)
			}
			if body.Error != tc.err.Error() {
				t.Errorf("exp %q, got %q", tc.err.Error(), body.Error)
			}
		})
	}
}

func TestSyncBusy(t *testing.T) {
	runner := &fakeRunner{
		result:  &model.RunResult{RunID: "run-1"},
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	srv := newTestServer(t, runner)

	done := make(chan int)
	go func() {
		resp, err := srv.Client().Post(srv.URL+"/sync", "application/json", nil)
		if err != nil {
			done <- 0
			return
		}
		resp.Body.Close()
		done <- resp.StatusCode
	}()
	<-runner.started

	status, _ := call(t, srv, http.MethodPost, "/sync")
	if status != http.StatusConflict {
		t.Errorf("exp 409, got %d", status)
	}

	close(runner.release)
	if first := <-done; first != http.StatusOK {
		t.Errorf("exp first sync to finish with 200, got %d", first)
	}
	if runner.calls != 1 {
		t.Errorf("exp 1 run, got %d", runner.calls)
	}
}

func TestSyncOutlivesClient(t *testing.T) {
	runner := &fakeRunner{
		result:   &model.RunResult{RunID: "run-1"},
		started:  make(chan struct{}),
		release:  make(chan struct{}),
		returned: make(chan struct{}),
	}
	srv := newTestServer(t, runner)

	reqCtx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, srv.URL+"/sync", nil)
	if err != nil {
		t.Fatalf("exp nil, got %v", err)
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		if resp, err := srv.Client().Do(req); err == nil {
			resp.Body.Close()
		}
	}()
	<-runner.started

	cancel()
	<-done
	time.Sleep(100 * time.Millisecond)
	close(runner.release)

	<-runner.returned

	runner.mu.Lock()
	defer runner.mu.Unlock()
	if runner.canceled {
		t.Error("exp sync not to be canceled by a disconnecting client")
	}
}

func TestSyncCanceledWithServer(t *testing.T) {
	runner := &fakeRunner{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	ctx, cancel := context.WithCancel(context.Background())
	srv := newTestServerContext(t, ctx, runner)

	statuses := make(chan int)
	go func() {
		resp, err := srv.Client().Post(srv.URL+"/sync", "application/json", nil)
		if err != nil {
			statuses <- 0
			return
		}
		resp.Body.Close()
		statuses <- resp.StatusCode
	}()
	<-runner.started
	cancel()

	if status := <-statuses; status != http.StatusInternalServerError {
		t.Errorf("exp 500, got %d", status)
	}
	runner.mu.Lock()
	defer runner.mu.Unlock()
	if !runner.canceled {
		t.Error("exp sync to stop with the server")
	}
}
