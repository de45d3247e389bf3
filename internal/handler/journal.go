package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"breakout/internal/repository"
)

// JournalHandler exposes the persisted trade history. Read-only; the
// engine never consumes these records.
type JournalHandler struct {
	Repo repository.Repository
}

func (h *JournalHandler) Register(r *gin.Engine, mw ...gin.HandlerFunc) {
	g := r.Group("/api/v1/journal", mw...)
	g.GET("/runs", h.listRuns)
	g.GET("/trades", h.listTrades)
}

func (h *JournalHandler) listRuns(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusServiceUnavailable, "journal disabled", nil)
		return
	}
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	runs, err := h.Repo.ListRuns(c.Request.Context(), limit, offset)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, runs, map[string]any{"limit": limit, "offset": offset})
}

func (h *JournalHandler) listTrades(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusServiceUnavailable, "journal disabled", nil)
		return
	}
	params := repository.ListTradeRecordsParams{
		Limit:  intQuery(c, "limit", 100),
		Offset: intQuery(c, "offset", 0),
	}
	if v := strings.TrimSpace(c.Query("run_id")); v != "" {
		params.RunID = &v
	}
	if v := strings.ToUpper(strings.TrimSpace(c.Query("symbol"))); v != "" {
		params.Symbol = &v
	}
	if v := strings.ToUpper(strings.TrimSpace(c.Query("side"))); v != "" {
		params.Side = &v
	}
	if v := strings.TrimSpace(c.Query("since")); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			Error(c, http.StatusBadRequest, "invalid since", nil)
			return
		}
		t := ts.UTC()
		params.Since = &t
	}
	items, err := h.Repo.ListTradeRecords(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, map[string]any{"limit": params.Limit, "offset": params.Offset})
}
