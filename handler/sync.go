package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"ewintr.nl/ytstats/model"
	"ewintr.nl/ytstats/process"
	"golang.org/x/exp/slog"
)

type Runner interface {
	Run(ctx context.Context) (*model.RunResult, error)
}

// SyncAPI starts a sync on request. Only one sync runs at a time. A sync
// keeps going when the client disconnects and stops only when ctx is done.
type SyncAPI struct {
	ctx     context.Context
	runner  Runner
	running sync.Mutex
	logger  *slog.Logger
}

func NewSyncAPI(ctx context.Context, runner Runner, logger *slog.Logger) *SyncAPI {
	return &SyncAPI{
		ctx:    ctx,
		runner: runner,
		logger: logger,
	}
}

func (s *SyncAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sub, _ := ShiftPath(r.URL.Path)

	switch {
	case r.Method == http.MethodPost && sub == "":
		s.Sync(w, r)
	default:
		Error(w, http.StatusNotFound, "not found", fmt.Errorf("method %s with subpath %q was not registered in the sync api", r.Method, sub))
	}
}

type syncResponse struct {
	RunID   string            `json:"run_id"`
	Fetched int               `json:"fetched"`
	Dropped int               `json:"dropped"`
	Updated []string          `json:"updated"`
	Failed  map[string]string `json:"failed,omitempty"`
}

func (s *SyncAPI) Sync(w http.ResponseWriter, r *http.Request) {
	if !s.running.TryLock() {
		Error(w, http.StatusConflict, "sync already running", errors.New("try again when the current sync has finished"))
		return
	}
	defer s.running.Unlock()

	result, err := s.runner.Run(s.ctx)
	if err != nil {
		var stageErr *process.StageError
		if errors.As(err, &stageErr) {
			s.returnErr(w, http.StatusBadGateway, "sync failed", err, map[string]string{"stage": stageErr.Stage})
			return
		}
		s.returnErr(w, http.StatusInternalServerError, "sync failed", err)
		return
	}

	resp := syncResponse{
		RunID:   result.RunID,
		Fetched: result.Fetched,
		Dropped: result.Dropped,
		Updated: result.Updated,
	}
	if len(result.Failed) > 0 {
		resp.Failed = make(map[string]string, len(result.Failed))
		for id, err := range result.Failed {
			resp.Failed[id] = err.Error()
		}
	}
	Message(w, http.StatusOK, "sync finished", resp)
}

func (s *SyncAPI) returnErr(w http.ResponseWriter, status int, message string, err error, details ...any) {
	s.logger.Error(message, slog.String("err", err.Error()), slog.String("details", fmt.Sprintf("%+v", details)))
	Error(w, status, message, err, details...)
}
