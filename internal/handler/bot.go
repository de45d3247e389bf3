package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"breakout/internal/engine"
)

// BotHandler is the control surface for trading runs.
type BotHandler struct {
	Manager *engine.RunManager
}

func (h *BotHandler) Register(r *gin.Engine, mw ...gin.HandlerFunc) {
	g := r.Group("/api/v1/bot", mw...)
	g.POST("/start", h.start)
	g.POST("/stop", h.stop)
	g.GET("/trades", h.trades)
	g.GET("/runs", h.runs)
}

func (h *BotHandler) start(c *gin.Context) {
	if h.Manager == nil {
		Error(c, http.StatusInternalServerError, "manager unavailable", nil)
		return
	}
	var req engine.RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	runID, err := h.Manager.StartRun(req)
	if err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	Ok(c, gin.H{"runId": runID}, nil)
}

type stopRequest struct {
	RunID string `json:"runId"`
}

func (h *BotHandler) stop(c *gin.Context) {
	if h.Manager == nil {
		Error(c, http.StatusInternalServerError, "manager unavailable", nil)
		return
	}
	var req stopRequest
	_ = c.ShouldBindJSON(&req)
	runID := strings.TrimSpace(req.RunID)
	if runID == "" {
		runID = strings.TrimSpace(c.Query("run_id"))
	}
	run, ok := h.Manager.Get(runID)
	if !ok {
		Error(c, http.StatusNotFound, "run not found", nil)
		return
	}
	if err := h.Manager.StopRun(run.ID); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	Ok(c, gin.H{"runId": run.ID, "status": "stopping"}, nil)
}

func (h *BotHandler) trades(c *gin.Context) {
	if h.Manager == nil {
		Error(c, http.StatusInternalServerError, "manager unavailable", nil)
		return
	}
	run, ok := h.Manager.Get(strings.TrimSpace(c.Query("run_id")))
	if !ok {
		Error(c, http.StatusNotFound, "run not found", nil)
		return
	}
	fills := run.Engine.Ledger.Snapshot()
	limit := intQuery(c, "limit", len(fills))
	offset := intQuery(c, "offset", 0)
	total := int64(len(fills))
	if offset < 0 {
		offset = 0
	}
	if offset > len(fills) {
		offset = len(fills)
	}
	end := len(fills)
	if limit >= 0 && offset+limit < end {
		end = offset + limit
	}
	Ok(c, fills[offset:end], map[string]any{
		"runId":  run.ID,
		"limit":  limit,
		"offset": offset,
		"total":  total,
	})
}

func (h *BotHandler) runs(c *gin.Context) {
	if h.Manager == nil {
		Error(c, http.StatusInternalServerError, "manager unavailable", nil)
		return
	}
	Ok(c, h.Manager.Runs(), nil)
}
