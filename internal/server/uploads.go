package server

import (
	"net/http"

	"educraft/pkg/domain"
)

// handleUpload accepts a multipart file upload and returns its URL.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request, account domain.Account) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "upload too large or malformed")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field required")
		return
	}
	defer file.Close()

	kind := r.FormValue("kind")
	url, err := s.app.SaveUpload(r.Context(), kind, header.Filename, header.Header.Get("Content-Type"), file, header.Size)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, map[string]string{"url": url})
}
