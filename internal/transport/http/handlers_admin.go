package httptransport

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"govbook/internal/cascade"
	"govbook/internal/policy"
	"govbook/internal/scheduler"
	pkgerrors "govbook/pkg/domain-errors"
	"govbook/pkg/platform/audit"
	"govbook/pkg/requestcontext"
)

// handleCascade adapts one cascade operation into a handler. Role checks
// happen inside the engine.
func (s *Server) handleCascade(op func(context.Context, int64) (*cascade.Result, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r, "id")
		if err != nil {
			writeError(w, err)
			return
		}
		res, err := op(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

type generateSlotsRequest struct {
	ServiceID       int64  `json:"service_id"`
	From            string `json:"from"`
	To              string `json:"to"`
	OpenHour        int    `json:"open_hour"`
	CloseHour       int    `json:"close_hour"`
	Capacity        int    `json:"capacity"`
	IncludeWeekends bool   `json:"include_weekends"`
}

func (s *Server) handleGenerateSlots(w http.ResponseWriter, r *http.Request) {
	var req generateSlotsRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	from, err := time.Parse("2006-01-02", req.From)
	if err != nil {
		writeError(w, pkgerrors.New(pkgerrors.CodeBadRequest, "from must be YYYY-MM-DD"))
		return
	}
	to, err := time.Parse("2006-01-02", req.To)
	if err != nil {
		writeError(w, pkgerrors.New(pkgerrors.CodeBadRequest, "to must be YYYY-MM-DD"))
		return
	}

	created, err := s.schedule.Generate(r.Context(), scheduler.GenerateRequest{
		ServiceID:       req.ServiceID,
		From:            from,
		To:              to,
		OpenHour:        req.OpenHour,
		CloseHour:       req.CloseHour,
		Capacity:        req.Capacity,
		IncludeWeekends: req.IncludeWeekends,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int{"slots_created": created})
}

type auditEntryResponse struct {
	ActorID   int64           `json:"actor_id"`
	Action    string          `json:"action"`
	Table     string          `json:"table"`
	RecordID  int64           `json:"record_id"`
	Before    json.RawMessage `json:"before,omitempty"`
	After     json.RawMessage `json:"after,omitempty"`
	IP        string          `json:"ip,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

func toAuditEntries(items []audit.Entry) []auditEntryResponse {
	out := make([]auditEntryResponse, len(items))
	for i, e := range items {
		out[i] = auditEntryResponse{
			ActorID:   e.ActorID,
			Action:    string(e.Action),
			Table:     e.Table,
			RecordID:  e.RecordID,
			Before:    e.Before,
			After:     e.After,
			IP:        e.IP,
			RequestID: e.RequestID,
			CreatedAt: e.CreatedAt,
		}
	}
	return out
}

func (s *Server) handleAuditByRecord(w http.ResponseWriter, r *http.Request) {
	actor := requestcontext.Actor(r.Context())
	if err := policy.Allow(actor, 0, policy.ActionAuditRead); err != nil {
		writeError(w, err)
		return
	}

	table := r.URL.Query().Get("table")
	if table == "" {
		writeError(w, pkgerrors.New(pkgerrors.CodeBadRequest, "table is required"))
		return
	}
	recordID, err := queryInt64(r, "record_id")
	if err != nil {
		writeError(w, err)
		return
	}
	if recordID == 0 {
		writeError(w, pkgerrors.New(pkgerrors.CodeBadRequest, "record_id is required"))
		return
	}

	entries, err := s.auditLog.ListByRecord(r.Context(), table, recordID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAuditEntries(entries))
}

func (s *Server) handleAuditRecent(w http.ResponseWriter, r *http.Request) {
	actor := requestcontext.Actor(r.Context())
	if err := policy.Allow(actor, 0, policy.ActionAuditRead); err != nil {
		writeError(w, err)
		return
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 1000 {
			writeError(w, pkgerrors.New(pkgerrors.CodeBadRequest, "limit must be 1-1000"))
			return
		}
		limit = n
	}

	entries, err := s.auditLog.ListRecent(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAuditEntries(entries))
}
