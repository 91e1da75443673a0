package httpbridge

import (
	"errors"
	"net/http"

	"github.com/soypete/mockinterview/pkg/transcribe"
)

const (
	// multipartMemory is how much of a form is buffered before spilling to disk
	multipartMemory = 8 << 20

	// formOverhead is allowed on top of the file limit for multipart
	// boundaries, part headers and form values.
	formOverhead = 1 << 20
)

// handleTranscribe handles POST /interview/transcribe
func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// A missing engine fails the request before the upload is read.
	if err := s.transcriber.Check(); err != nil {
		s.logger.Printf("[http] engine unavailable: %v", err)
		respondJSON(w, http.StatusInternalServerError, map[string]string{
			"error":  transcribe.CodeEngineNotFound,
			"detail": err.Error(),
		})
		return
	}

	limit := s.config.Upload.MaxBytes
	if limit > 0 {
		if r.ContentLength > limit+formOverhead {
			respondTooLarge(w, limit)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, limit+formOverhead)
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			respondTooLarge(w, limit)
		case errors.Is(err, http.ErrNotMultipart):
			respondJSON(w, http.StatusBadRequest, map[string]string{"error": "no_file"})
		default:
			respondJSON(w, http.StatusBadRequest, map[string]string{
				"error":  "invalid_form",
				"detail": err.Error(),
			})
		}
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("audio")
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "no_file"})
		return
	}
	defer file.Close()

	if limit > 0 && header.Size > limit {
		respondTooLarge(w, limit)
		return
	}

	path, err := transcribe.SpoolUpload(s.config.Upload.Dir, file)
	if err != nil {
		s.logger.Printf("[http] upload failed: %v", err)
		respondJSON(w, http.StatusInternalServerError, map[string]string{
			"error":  "upload_failed",
			"detail": err.Error(),
		})
		return
	}

	outcome := s.transcriber.Transcribe(r.Context(), transcribe.Upload{
		TempPath:     path,
		MimeType:     header.Header.Get("Content-Type"),
		OriginalName: header.Filename,
		Language:     r.FormValue("language"),
	})

	respondJSON(w, statusFor(outcome), outcome.Body())
}

func respondTooLarge(w http.ResponseWriter, limit int64) {
	respondJSON(w, http.StatusRequestEntityTooLarge, map[string]interface{}{
		"error": "file_too_large",
		"limit": limit,
	})
}

// statusFor maps an outcome to its HTTP status
func statusFor(o *transcribe.Outcome) int {
	switch o.Kind {
	case transcribe.KindSuccess:
		return http.StatusOK
	case transcribe.KindEngineError, transcribe.KindProtocolError:
		return http.StatusBadGateway
	}
	if o.Code == transcribe.CodeTimeout {
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}
