package handler

import (
	"errors"
	"net/http"

	"github.com/zeromicro/go-zero/rest/httpx"

	"marketnews-api/internal/scheduler"
	"marketnews-api/internal/svc"
)

func writeUnavailable(w http.ResponseWriter, r *http.Request, msg string) {
	httpx.WriteJsonCtx(r.Context(), w, http.StatusServiceUnavailable, map[string]string{"error": msg})
}

// SchedulerStatusHandler reports the scheduler and per-provider quota state.
func SchedulerStatusHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svcCtx.Scheduler == nil {
			writeUnavailable(w, r, "scheduler not configured")
			return
		}
		httpx.OkJsonCtx(r.Context(), w, svcCtx.Scheduler.Status(r.Context()))
	}
}

// SchedulerStartHandler launches the collection loop.
func SchedulerStartHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svcCtx.Scheduler == nil {
			writeUnavailable(w, r, "scheduler not configured")
			return
		}
		if err := svcCtx.Scheduler.Start(); err != nil {
			if errors.Is(err, scheduler.ErrAlreadyRunning) {
				httpx.OkJsonCtx(r.Context(), w, map[string]string{"status": "already_running"})
				return
			}
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}
		httpx.OkJsonCtx(r.Context(), w, map[string]string{"status": "started"})
	}
}

// SchedulerStopHandler halts the collection loop.
func SchedulerStopHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svcCtx.Scheduler == nil {
			writeUnavailable(w, r, "scheduler not configured")
			return
		}
		if err := svcCtx.Scheduler.Stop(); err != nil {
			if errors.Is(err, scheduler.ErrNotRunning) {
				httpx.OkJsonCtx(r.Context(), w, map[string]string{"status": "not_running"})
				return
			}
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}
		httpx.OkJsonCtx(r.Context(), w, map[string]string{"status": "stopped"})
	}
}
