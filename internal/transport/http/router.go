// Package httptransport is the thin HTTP layer over the booking engine. It
// decodes requests, resolves the caller, and delegates; ownership and role
// rules live in the services.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"govbook/internal/booking"
	"govbook/internal/cascade"
	"govbook/internal/directory"
	"govbook/internal/document"
	"govbook/internal/notification"
	"govbook/internal/platform/metrics"
	"govbook/internal/platform/middleware"
	"govbook/internal/scheduler"
	"govbook/pkg/platform/audit"
	"govbook/pkg/requestcontext"
)

// AuditLog is the read side of the audit trail, exposed to admins.
type AuditLog interface {
	ListByRecord(ctx context.Context, table string, recordID int64) ([]audit.Entry, error)
	ListRecent(ctx context.Context, limit int) ([]audit.Entry, error)
}

// TokenIssuer mints access tokens after a successful login.
type TokenIssuer interface {
	GenerateAccessToken(userID int64, role string, expiresIn time.Duration) (string, error)
}

type Server struct {
	directory     *directory.Directory
	bookings      *booking.Service
	cascades      *cascade.Engine
	documents     *document.Service
	notifications *notification.Service
	schedule      *scheduler.Scheduler
	auditLog      AuditLog

	tokens    TokenIssuer
	validator middleware.TokenValidator
	tokenTTL  time.Duration
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func NewServer(
	dir *directory.Directory,
	bookings *booking.Service,
	cascades *cascade.Engine,
	documents *document.Service,
	notifications *notification.Service,
	schedule *scheduler.Scheduler,
	auditLog AuditLog,
	tokens TokenIssuer,
	validator middleware.TokenValidator,
	tokenTTL time.Duration,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Server {
	return &Server{
		directory:     dir,
		bookings:      bookings,
		cascades:      cascades,
		documents:     documents,
		notifications: notifications,
		schedule:      schedule,
		auditLog:      auditLog,
		tokens:        tokens,
		validator:     validator,
		tokenTTL:      tokenTTL,
		metrics:       m,
		logger:        logger,
	}
}

// Handler builds the full route tree.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestMetadata)
	r.Use(s.observe)
	r.Use(chimw.Timeout(30 * time.Second))

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(s.validator, s.logger))

			r.Get("/users/me", s.handleMe)
			r.Put("/users/me", s.handleUpdateMe)

			r.Post("/appointments", s.handleBook)
			r.Get("/appointments", s.handleListMine)
			r.Get("/appointments/reference/{reference}", s.handleGetByReference)
			r.Get("/appointments/{id}", s.handleGetAppointment)
			r.Post("/appointments/{id}/reschedule", s.handleReschedule)
			r.Post("/appointments/{id}/status", s.handleTransition)
			r.Post("/appointments/{id}/cancel", s.handleCancel)
			r.Get("/appointments/{id}/documents", s.handleAppointmentDocuments)
			r.Get("/appointments/{id}/requirements", s.handleRequirements)

			r.Get("/departments", s.handleListDepartments)
			r.Post("/departments", s.handleCreateDepartment)
			r.Get("/departments/{id}", s.handleGetDepartment)
			r.Get("/departments/{id}/services", s.handleDepartmentServices)
			r.Post("/services", s.handleCreateService)
			r.Get("/services/{id}", s.handleGetService)
			r.Get("/services/{id}/slots", s.handleAvailableSlots)
			r.Post("/officers", s.handleCreateOfficer)
			r.Get("/officers/{id}", s.handleGetOfficer)

			r.Post("/documents", s.handleUploadDocument)
			r.Get("/documents", s.handleListMyDocuments)
			r.Post("/documents/{id}/verify", s.handleVerifyDocument)
			r.Post("/documents/{id}/reject", s.handleRejectDocument)

			r.Get("/notifications", s.handleListNotifications)
			r.Get("/notifications/unread-count", s.handleUnreadCount)
			r.Post("/notifications/read-all", s.handleMarkAllRead)
			r.Post("/notifications/{id}/read", s.handleMarkRead)

			r.Get("/statistics", s.handleStatistics)

			r.Route("/admin", func(r chi.Router) {
				r.Post("/slots/generate", s.handleGenerateSlots)
				r.Post("/users/{id}/deactivate", s.handleCascade(s.cascades.DeactivateUser))
				r.Post("/users/{id}/reactivate", s.handleCascade(s.cascades.ReactivateUser))
				r.Post("/services/{id}/deactivate", s.handleCascade(s.cascades.DeactivateService))
				r.Post("/services/{id}/reactivate", s.handleCascade(s.cascades.ReactivateService))
				r.Post("/departments/{id}/deactivate", s.handleCascade(s.cascades.DeactivateDepartment))
				r.Post("/departments/{id}/reactivate", s.handleCascade(s.cascades.ReactivateDepartment))
				r.Get("/audit", s.handleAuditByRecord)
				r.Get("/audit/recent", s.handleAuditRecent)
			})
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// observe records per-route latency and an access log line.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		elapsed := time.Since(start)
		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		s.metrics.RequestDuration.WithLabelValues(
			r.Method, route, strconv.Itoa(ww.Status()),
		).Observe(elapsed.Seconds())

		s.logger.InfoContext(r.Context(), "http request",
			"method", r.Method,
			"route", route,
			"status", ww.Status(),
			"duration_ms", elapsed.Milliseconds(),
			"request_id", requestcontext.RequestID(r.Context()),
		)
	})
}
