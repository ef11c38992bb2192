package httptransport

import (
	"net/http"

	"govbook/internal/document"
)

type uploadDocumentRequest struct {
	AppointmentID int64  `json:"appointment_id"`
	DocumentType  string `json:"document_type"`
	FileName      string `json:"file_name"`
	FilePath      string `json:"file_path"`
	MimeType      string `json:"mime_type"`
}

func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	var req uploadDocumentRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	doc, err := s.documents.Upload(r.Context(), document.UploadRequest{
		AppointmentID: req.AppointmentID,
		DocumentType:  req.DocumentType,
		FileName:      req.FileName,
		FilePath:      req.FilePath,
		MimeType:      req.MimeType,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toDocument(doc))
}

func (s *Server) handleListMyDocuments(w http.ResponseWriter, r *http.Request) {
	items, err := s.documents.ListMine(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDocuments(items))
}

func (s *Server) handleAppointmentDocuments(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	items, err := s.documents.ListByAppointment(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDocuments(items))
}

func (s *Server) handleRequirements(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	report, err := s.documents.ValidateRequirements(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type reviewDocumentRequest struct {
	Notes string `json:"notes"`
}

func (s *Server) handleVerifyDocument(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req reviewDocumentRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	doc, err := s.documents.Verify(r.Context(), id, req.Notes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDocument(doc))
}

func (s *Server) handleRejectDocument(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req reviewDocumentRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	doc, err := s.documents.Reject(r.Context(), id, req.Notes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDocument(doc))
}
