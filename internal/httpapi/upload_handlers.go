package httpapi

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/marmos91/ditto-upload/internal/apperror"
	"github.com/marmos91/ditto-upload/internal/catalogmodel"
	"github.com/marmos91/ditto-upload/internal/upload"
)

// uploadHandlers serves the two upload endpoints: create, which opens a
// multipart session, and the part endpoint, which streams one chunk
// into it.
type uploadHandlers struct {
	engine *upload.Engine
}

const defaultMaxMemory = 32 << 20 // 32 MiB, matching net/http's own default

// createResponse is the JSON body returned by POST /upload/create.
type createResponse struct {
	FileID   string `json:"file_id"`
	UploadID string `json:"upload_id"`
}

// create handles POST /upload/create (multipart form): fileName,
// contentType, optional path.
func (h *uploadHandlers) create(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireOwner(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(defaultMaxMemory); err != nil {
		badRequest(w, "invalid multipart form")
		return
	}

	fileName := r.FormValue("fileName")
	contentType := r.FormValue("contentType")
	path := r.FormValue("path")

	if fileName == "" {
		badRequest(w, "fileName is required")
		return
	}

	result, err := h.engine.CreateUpload(r.Context(), owner, fileName, path, contentType)
	if err != nil {
		writeError(w, err)
		return
	}

	created(w, createResponse{FileID: result.FileID.String(), UploadID: result.UploadID})
}

// part handles POST /upload/{file_id} (multipart form): uploadId,
// checksum (hex sha256), chunkNumber, totalChunks, chunk (binary).
func (h *uploadHandlers) part(w http.ResponseWriter, r *http.Request) {
	fileID, err := catalogmodel.ParseFileID(chi.URLParam(r, "file_id"))
	if err != nil {
		badRequest(w, "invalid file_id")
		return
	}

	if err := r.ParseMultipartForm(defaultMaxMemory); err != nil {
		badRequest(w, "invalid multipart form")
		return
	}

	uploadID := r.FormValue("uploadId")
	checksum := r.FormValue("checksum")

	chunkNumber, err := strconv.Atoi(r.FormValue("chunkNumber"))
	if err != nil {
		badRequest(w, "chunkNumber must be an integer")
		return
	}
	totalChunks, err := strconv.Atoi(r.FormValue("totalChunks"))
	if err != nil {
		badRequest(w, "totalChunks must be an integer")
		return
	}

	file, header, err := r.FormFile("chunk")
	if err != nil {
		badRequest(w, "chunk file field is required")
		return
	}
	defer file.Close()

	body, err := io.ReadAll(io.LimitReader(file, header.Size+1))
	if err != nil {
		writeError(w, apperror.Wrap(apperror.Backend, "reading chunk body", err))
		return
	}

	if err := h.engine.UploadPart(r.Context(), uploadID, fileID, chunkNumber, totalChunks, body, checksum); err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "chunk %d/%d accepted\n", chunkNumber, totalChunks)
}
