package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/okian/racecheck/internal/adapters/export"
)

// multipartOverhead is the room allowed for multipart headers and
// boundaries on top of the upload limit.
const multipartOverhead = 64 << 10

// ResultsHandler handles result uploads and ranked reads.
type ResultsHandler struct {
	deps Dependencies
	errs *errorWriter
}

// NewResultsHandler creates a new results handler.
func NewResultsHandler(deps Dependencies, errs *errorWriter) *ResultsHandler {
	return &ResultsHandler{deps: deps, errs: errs}
}

// HandleUpload handles POST /events/{id}/results requests. The feed is
// queued for import and 202 is returned; a repeated feed answers 200.
func (h *ResultsHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	const op = "api.upload_results"
	filename, raw, err := h.readFeed(w, r)
	if err != nil {
		h.errs.write(w, r, Wrap(op, err))
		return
	}
	if filename == "" {
		h.errs.write(w, r, WrapKind(op, ErrBadRequest, errors.New("missing filename")))
		return
	}
	ack, err := h.deps.SubmitResults(r.Context(), r.PathValue("id"), filename, raw)
	if err != nil {
		h.errs.write(w, r, Wrap(op, err))
		return
	}
	status := http.StatusAccepted
	if ack.Duplicate {
		status = http.StatusOK
	}
	writeJSON(w, status, ack)
}

// HandlePreview handles POST /events/{id}/preview requests.
func (h *ResultsHandler) HandlePreview(w http.ResponseWriter, r *http.Request) {
	const op = "api.preview"
	_, raw, err := h.readFeed(w, r)
	if err != nil {
		h.errs.write(w, r, Wrap(op, err))
		return
	}
	c, err := h.deps.Preview(r.Context(), r.PathValue("id"), raw)
	if err != nil {
		h.errs.write(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// HandleClassification handles GET /events/{id}/classification requests.
func (h *ResultsHandler) HandleClassification(w http.ResponseWriter, r *http.Request) {
	c, err := h.deps.Classification(r.Context(), r.PathValue("id"))
	if err != nil {
		h.errs.write(w, r, Wrap("api.classification", err))
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// HandleResults handles GET /events/{id}/results?modality=M requests.
func (h *ResultsHandler) HandleResults(w http.ResponseWriter, r *http.Request) {
	res, err := h.deps.Results(r.Context(), r.PathValue("id"), r.URL.Query().Get("modality"))
	if err != nil {
		h.errs.write(w, r, Wrap("api.results", err))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleExport handles GET /events/{id}/results.xlsx requests. The
// workbook is built in memory so a failure can still be reported as JSON.
func (h *ResultsHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var buf bytes.Buffer
	if err := h.deps.ExportResults(r.Context(), id, &buf); err != nil {
		h.errs.write(w, r, Wrap("api.export_results", err))
		return
	}
	w.Header().Set("Content-Type", export.ContentTypeXLSX)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": id + ".xlsx"}))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// HandleTicket handles GET /events/{id}/tickets/{dorsal}?modality=M requests.
func (h *ResultsHandler) HandleTicket(w http.ResponseWriter, r *http.Request) {
	t, err := h.deps.Ticket(r.Context(), r.PathValue("id"), r.PathValue("dorsal"), r.URL.Query().Get("modality"))
	if err != nil {
		h.errs.write(w, r, Wrap("api.ticket", err))
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// readFeed returns the uploaded file name and content. A multipart body
// carries the feed in its "file" part; any other body is the feed itself
// with the name in the "filename" query parameter. At most one byte past
// the upload limit is read so the service can reject oversized feeds.
func (h *ResultsHandler) readFeed(w http.ResponseWriter, r *http.Request) (string, []byte, error) {
	limit := h.deps.MaxUploadBytes()
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if !strings.EqualFold(mediaType, "multipart/form-data") {
		raw, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
		if err != nil {
			return "", nil, fmt.Errorf("read body: %w", err)
		}
		return r.URL.Query().Get("filename"), raw, nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)
	mr, err := r.MultipartReader()
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return "", nil, fmt.Errorf("%w: missing file part", ErrBadRequest)
		}
		if err != nil {
			return "", nil, bodyError(err)
		}
		if part.FormName() != "file" {
			_ = part.Close()
			continue
		}
		raw, err := io.ReadAll(io.LimitReader(part, limit+1))
		_ = part.Close()
		if err != nil {
			return "", nil, bodyError(err)
		}
		return part.FileName(), raw, nil
	}
}

func bodyError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return ErrPayloadTooLarge
	}
	return fmt.Errorf("%w: %w", ErrBadRequest, err)
}
