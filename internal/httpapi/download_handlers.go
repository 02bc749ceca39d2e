package httpapi

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/marmos91/ditto-upload/internal/apperror"
	"github.com/marmos91/ditto-upload/internal/catalog"
	"github.com/marmos91/ditto-upload/internal/catalogmodel"
	"github.com/marmos91/ditto-upload/internal/logger"
	"github.com/marmos91/ditto-upload/internal/objectstore"
)

// downloadHandlers serves the three download endpoints: metadata,
// ranged byte fetch, and an inline view.
type downloadHandlers struct {
	catalog catalog.Catalog
	objects objectstore.Store
}

type metadataResponse struct {
	ContentSize int64             `json:"content_size"`
	Mime        string            `json:"mime"`
	Metadata    map[string]string `json:"metadata"`
}

func (h *downloadHandlers) lookup(w http.ResponseWriter, r *http.Request) (*catalogmodel.File, bool) {
	owner, ok := requireOwner(w, r)
	if !ok {
		return nil, false
	}

	fileID, err := catalogmodel.ParseFileID(chi.URLParam(r, "file_id"))
	if err != nil {
		badRequest(w, "invalid file_id")
		return nil, false
	}

	record, err := h.catalog.Get(r.Context(), owner, fileID)
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	if record == nil || !record.UploadCompleted {
		writeError(w, apperror.New(apperror.NotFound, "file not found"))
		return nil, false
	}
	return record, true
}

// metadata handles GET /download/{file_id}/metadata.
func (h *downloadHandlers) metadata(w http.ResponseWriter, r *http.Request) {
	record, found := h.lookup(w, r)
	if !found {
		return
	}

	ok(w, metadataResponse{
		ContentSize: record.FileSize,
		Mime:        record.FileType,
		Metadata: map[string]string{
			"file_name": record.FileName,
			"path":      record.Path,
		},
	})
}

// fetch handles GET /download/{file_id}?rangeStart=N&rangeEnd=M, a
// 206 Partial Content response over [rangeStart, rangeEnd] inclusive.
// Without range params it streams the whole object as a 200.
func (h *downloadHandlers) fetch(w http.ResponseWriter, r *http.Request) {
	record, found := h.lookup(w, r)
	if !found {
		return
	}
	h.stream(w, r, record, "attachment")
}

// view handles GET /download/{file_id}/view: the same body as fetch
// but with an inline Content-Disposition, for in-browser rendering.
func (h *downloadHandlers) view(w http.ResponseWriter, r *http.Request) {
	record, found := h.lookup(w, r)
	if !found {
		return
	}
	h.stream(w, r, record, "inline")
}

func (h *downloadHandlers) stream(w http.ResponseWriter, r *http.Request, record *catalogmodel.File, disposition string) {
	objectKey := catalogmodel.ObjectKey(record.OwnerID, record.ID)

	rangeStart, rangeEnd, ranged, err := parseRange(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	offset := int64(0)
	length := int64(-1)
	status := http.StatusOK
	contentLength := record.FileSize

	if ranged {
		if rangeEnd >= record.FileSize {
			rangeEnd = record.FileSize - 1
		}
		if rangeStart > rangeEnd {
			badRequest(w, "rangeStart must not exceed rangeEnd")
			return
		}
		offset = rangeStart
		length = rangeEnd - rangeStart + 1
		status = http.StatusPartialContent
		contentLength = length
	}

	body, err := h.objects.GetObject(r.Context(), objectKey, offset, length)
	if err != nil {
		writeError(w, err)
		return
	}
	defer body.Close()

	if record.FileType != "" {
		w.Header().Set("Content-Type", record.FileType)
	}
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`%s; filename="%s"`, disposition, record.FileName))
	w.Header().Set("Content-Length", strconv.FormatInt(contentLength, 10))
	if ranged {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", rangeStart, rangeEnd, record.FileSize))
	}
	w.WriteHeader(status)

	if _, err := io.Copy(w, body); err != nil {
		logger.Error("streaming object body failed", "object_key", objectKey, "error", err)
	}
}

func parseRange(r *http.Request) (start, end int64, ranged bool, err error) {
	startRaw := r.URL.Query().Get("rangeStart")
	endRaw := r.URL.Query().Get("rangeEnd")
	if startRaw == "" && endRaw == "" {
		return 0, 0, false, nil
	}

	start, err = strconv.ParseInt(startRaw, 10, 64)
	if err != nil || start < 0 {
		return 0, 0, false, fmt.Errorf("rangeStart must be a non-negative integer")
	}
	end, err = strconv.ParseInt(endRaw, 10, 64)
	if err != nil || end < start {
		return 0, 0, false, fmt.Errorf("rangeEnd must be an integer >= rangeStart")
	}
	return start, end, true, nil
}
