package receipt

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"time"
)

// multipartOverhead is allowed on top of the file size for form boundaries and headers
const multipartOverhead = 1 << 20

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type uploadResponse struct {
	Success bool    `json:"success"`
	Data    *Record `json:"data"`
}

type deleteResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type healthResponse struct {
	Status        string `json:"status"`
	Timestamp     string `json:"timestamp"`
	ReceiptsCount int    `json:"receiptsCount"`
}

// writeJSON writes v as a JSON response with the given status
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// writeError writes the uniform {success:false,error} body for err
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if kind := KindOf(err); kind != "" {
		status = kind.HTTPStatus()
	}
	writeJSON(w, status, errorResponse{Error: userMessage(err)})
}

// isBodyTooLarge reports whether err came from http.MaxBytesReader
func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

// handleUploadReceipt handles receipt upload and processing
func (s *Server) handleUploadReceipt(w http.ResponseWriter, r *http.Request) {
	maxBytes := s.service.MaxUploadBytes()
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartOverhead)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		switch {
		case isBodyTooLarge(err):
			writeError(w, tooLargeError(maxBytes))
		case errors.Is(err, http.ErrNotMultipart):
			writeError(w, ErrNoFile)
		default:
			slog.Error("Error parsing multipart form", "error", err)
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Error parsing form"})
		}
		return
	}
	defer r.MultipartForm.RemoveAll()

	var upload *Upload
	f, header, err := r.FormFile("receipt")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		// Ingest reports the missing file
	case err != nil:
		slog.Error("Error getting file from form", "error", err)
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Error reading uploaded file"})
		return
	default:
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			slog.Error("Error reading file data", "error", err, "filename", header.Filename)
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Error reading file. Please try again."})
			return
		}
		upload = &Upload{
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Size:        header.Size,
			Data:        data,
			BaseURL:     s.baseURL(r),
		}
	}

	record, err := s.service.Ingest(r.Context(), upload)
	if err != nil {
		if KindOf(err) == "" {
			slog.Error("Error processing receipt", "error", err)
		}
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, uploadResponse{Success: true, Data: record})
}

// handleListReceipts returns receipts, most recent first, optionally filtered
func (s *Server) handleListReceipts(w http.ResponseWriter, r *http.Request) {
	filter, err := ParseFilter(r.URL.Query())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, filter.Apply(s.service.ListReceipts()))
}

// handleStats returns dashboard statistics
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.Stats())
}

// handleGetReceipt returns a single receipt
func (s *Server) handleGetReceipt(w http.ResponseWriter, r *http.Request) {
	record, err := s.service.GetReceipt(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, record)
}

// handleDeleteReceipt deletes a receipt
func (s *Server) handleDeleteReceipt(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteReceipt(r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, deleteResponse{Success: true, Message: "Receipt deleted successfully"})
}

// handleHealth reports liveness and the current receipt count
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:        "OK",
		Timestamp:     time.Now().UTC().Format(time.RFC3339Nano),
		ReceiptsCount: s.service.Count(),
	})
}

// handleGetUpload serves a stored receipt file
func (s *Server) handleGetUpload(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	data, err := s.service.GetUpload(name)
	if err != nil {
		if !errors.Is(err, ErrFileNotFound) {
			slog.Warn("Error reading upload", "name", name, "error", err)
		}
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "File not found"})
		return
	}

	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}
