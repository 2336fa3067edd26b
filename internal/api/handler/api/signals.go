// internal/api/handler/api/signals.go
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/newthinker/vanguard/internal/api/response"
	"github.com/newthinker/vanguard/internal/core"
	"github.com/newthinker/vanguard/internal/storage/signal"
)

const defaultHistoryLimit = 50

// ConsensusSource supplies the latest consensus batch.
type ConsensusSource interface {
	GetConsensusSignals() []core.ConsensusSignal
}

// SignalsHandler handles consensus signal API requests.
type SignalsHandler struct {
	engine ConsensusSource
	store  signal.Store
}

// NewSignalsHandler creates a new signals handler. store may be nil, in which
// case the history routes report no data.
func NewSignalsHandler(engine ConsensusSource, store signal.Store) *SignalsHandler {
	return &SignalsHandler{engine: engine, store: store}
}

// Current returns the latest consensus batch.
func (h *SignalsHandler) Current(w http.ResponseWriter, r *http.Request) {
	signals := h.engine.GetConsensusSignals()
	response.JSON(w, http.StatusOK, map[string]any{
		"signals": signals,
		"count":   len(signals),
	})
}

// History returns past consensus signals matching query parameters.
func (h *SignalsHandler) History(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		response.Fail(w, core.ErrNoData)
		return
	}

	q := r.URL.Query()

	filter := signal.ListFilter{
		Symbol: q.Get("symbol"),
		Limit:  defaultHistoryLimit,
	}

	if action := q.Get("action"); action != "" {
		filter.Action = core.Action(action)
	}
	filter.From = parseTime(q.Get("from"))
	filter.To = parseTime(q.Get("to"))

	if limit := q.Get("limit"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil && n > 0 {
			filter.Limit = n
		}
	}

	if offset := q.Get("offset"); offset != "" {
		if n, err := strconv.Atoi(offset); err == nil && n > 0 {
			filter.Offset = n
		}
	}

	signals, err := h.store.List(r.Context(), filter)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, err)
		return
	}

	count, _ := h.store.Count(r.Context(), filter)

	response.JSON(w, http.StatusOK, map[string]any{
		"signals": signals,
		"total":   count,
		"limit":   filter.Limit,
		"offset":  filter.Offset,
	})
}

// GetByID returns a single historical signal.
func (h *SignalsHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		response.Fail(w, core.ErrNoData)
		return
	}

	sig, err := h.store.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		response.Fail(w, err)
		return
	}

	response.JSON(w, http.StatusOK, sig)
}

// parseTime accepts RFC 3339 timestamps or plain dates.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t
	}
	return time.Time{}
}
