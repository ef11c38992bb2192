package httptransport

import (
	"net/http"

	"govbook/internal/directory"
)

func (s *Server) handleListDepartments(w http.ResponseWriter, r *http.Request) {
	items, err := s.directory.ListDepartments(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]departmentResponse, len(items))
	for i := range items {
		out[i] = toDepartment(&items[i])
	}
	writeJSON(w, http.StatusOK, out)
}

type createDepartmentRequest struct {
	Name          string `json:"name"`
	Description   string `json:"description"`
	Location      string `json:"location"`
	ContactNumber string `json:"contact_number"`
	Email         string `json:"email"`
}

func (s *Server) handleCreateDepartment(w http.ResponseWriter, r *http.Request) {
	var req createDepartmentRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	dept := &directory.Department{
		Name:          req.Name,
		Description:   req.Description,
		Location:      req.Location,
		ContactNumber: req.ContactNumber,
		Email:         req.Email,
	}
	if err := s.directory.CreateDepartment(r.Context(), dept); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toDepartment(dept))
}

func (s *Server) handleGetDepartment(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	dept, err := s.directory.GetDepartment(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDepartment(dept))
}

func (s *Server) handleDepartmentServices(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	items, err := s.directory.ListServicesByDepartment(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]serviceResponse, len(items))
	for i := range items {
		out[i] = toService(&items[i])
	}
	writeJSON(w, http.StatusOK, out)
}

type createServiceRequest struct {
	DepartmentID         int64  `json:"department_id"`
	Name                 string `json:"name"`
	Description          string `json:"description"`
	DurationMinutes      int    `json:"duration_minutes"`
	MaxDailyAppointments int    `json:"max_daily_appointments"`
	RequiredDocuments    string `json:"required_documents"`
}

func (s *Server) handleCreateService(w http.ResponseWriter, r *http.Request) {
	var req createServiceRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	svc := &directory.Service{
		DepartmentID:         req.DepartmentID,
		Name:                 req.Name,
		Description:          req.Description,
		DurationMinutes:      req.DurationMinutes,
		MaxDailyAppointments: req.MaxDailyAppointments,
		RequiredDocuments:    req.RequiredDocuments,
	}
	if err := s.directory.CreateService(r.Context(), svc); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toService(svc))
}

func (s *Server) handleGetService(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	svc, err := s.directory.GetService(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toService(svc))
}

type createOfficerRequest struct {
	UserID       int64  `json:"user_id"`
	DepartmentID int64  `json:"department_id"`
	OfficerID    string `json:"officer_id"`
	Designation  string `json:"designation"`
}

func (s *Server) handleCreateOfficer(w http.ResponseWriter, r *http.Request) {
	var req createOfficerRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	officer := &directory.Officer{
		UserID:       req.UserID,
		DepartmentID: req.DepartmentID,
		OfficerID:    req.OfficerID,
		Designation:  req.Designation,
	}
	if err := s.directory.CreateOfficer(r.Context(), officer); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, officerResponse{
		ID:           officer.ID,
		UserID:       officer.UserID,
		DepartmentID: officer.DepartmentID,
		OfficerID:    officer.OfficerID,
		Designation:  officer.Designation,
		IsActive:     officer.IsActive,
	})
}

func (s *Server) handleGetOfficer(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	officer, err := s.directory.GetOfficer(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, officerResponse{
		ID:           officer.ID,
		UserID:       officer.UserID,
		DepartmentID: officer.DepartmentID,
		OfficerID:    officer.OfficerID,
		Designation:  officer.Designation,
		IsActive:     officer.IsActive,
	})
}
