package httptransport

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"govbook/internal/booking"
	pkgerrors "govbook/pkg/domain-errors"
	"govbook/pkg/requestcontext"
)

type bookRequest struct {
	ServiceID  int64  `json:"service_id"`
	TimeSlotID int64  `json:"time_slot_id"`
	Notes      string `json:"notes"`
}

func (s *Server) handleBook(w http.ResponseWriter, r *http.Request) {
	var req bookRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	actor := requestcontext.Actor(r.Context())
	appt, err := s.bookings.Book(r.Context(), booking.BookRequest{
		UserID:     actor.UserID,
		ServiceID:  req.ServiceID,
		TimeSlotID: req.TimeSlotID,
		Notes:      req.Notes,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAppointment(appt))
}

func (s *Server) handleListMine(w http.ResponseWriter, r *http.Request) {
	items, err := s.bookings.ListMine(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointments(items))
}

func (s *Server) handleGetAppointment(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	appt, err := s.bookings.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointment(appt))
}

func (s *Server) handleGetByReference(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "reference")
	appt, err := s.bookings.GetByReference(r.Context(), ref)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointment(appt))
}

type rescheduleRequest struct {
	TimeSlotID int64 `json:"time_slot_id"`
}

func (s *Server) handleReschedule(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req rescheduleRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	appt, err := s.bookings.Reschedule(r.Context(), id, req.TimeSlotID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointment(appt))
}

type transitionRequest struct {
	Status string `json:"status"`
}

func (s *Server) handleTransition(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req transitionRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	appt, err := s.bookings.Transition(r.Context(), id, booking.Status(req.Status))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointment(appt))
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	appt, err := s.bookings.Cancel(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointment(appt))
}

func (s *Server) handleAvailableSlots(w http.ResponseWriter, r *http.Request) {
	serviceID, err := idParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	day := requestcontext.Now(r.Context())
	if raw := r.URL.Query().Get("date"); raw != "" {
		day, err = time.Parse("2006-01-02", raw)
		if err != nil {
			writeError(w, pkgerrors.New(pkgerrors.CodeBadRequest, "date must be YYYY-MM-DD"))
			return
		}
	}

	slots, err := s.bookings.AvailableSlots(r.Context(), serviceID, day)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSlots(slots))
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	serviceID, err := queryInt64(r, "service_id")
	if err != nil {
		writeError(w, err)
		return
	}
	departmentID, err := queryInt64(r, "department_id")
	if err != nil {
		writeError(w, err)
		return
	}

	stats, err := s.bookings.Statistics(r.Context(), serviceID, departmentID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statisticsResponse{
		Total:     stats.Total,
		Pending:   stats.Pending,
		Confirmed: stats.Confirmed,
		Completed: stats.Completed,
		Cancelled: stats.Cancelled,
		NoShow:    stats.NoShow,
	})
}
