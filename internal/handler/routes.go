package handler

import (
	"net/http"

	"github.com/zeromicro/go-zero/rest"

	"marketnews-api/internal/svc"
)

// RegisterHandlers wires the ops surface onto the rest server.
func RegisterHandlers(server *rest.Server, svcCtx *svc.ServiceContext) {
	server.AddRoutes([]rest.Route{
		{
			Method:  http.MethodGet,
			Path:    "/scheduler/status",
			Handler: SchedulerStatusHandler(svcCtx),
		},
		{
			Method:  http.MethodPost,
			Path:    "/scheduler/start",
			Handler: SchedulerStartHandler(svcCtx),
		},
		{
			Method:  http.MethodPost,
			Path:    "/scheduler/stop",
			Handler: SchedulerStopHandler(svcCtx),
		},
		{
			Method:  http.MethodGet,
			Path:    "/news/quota",
			Handler: NewsQuotaHandler(svcCtx),
		},
		{
			Method:  http.MethodGet,
			Path:    "/news/stats",
			Handler: NewsStatsHandler(svcCtx),
		},
		{
			Method:  http.MethodGet,
			Path:    "/news/recent/:symbol",
			Handler: NewsRecentHandler(svcCtx),
		},
	})
}
