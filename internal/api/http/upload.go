package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	qerrors "github.com/qbench/qbench/internal/errors"
	"github.com/qbench/qbench/internal/events"
	"github.com/qbench/qbench/internal/ingest"
	"github.com/qbench/qbench/internal/storage"
	"github.com/qbench/qbench/internal/store"
)

// Multipart field names of the upload forms.
const (
	FieldPerformanceReport = "performanceReportFile"
	FieldProblem           = "problemFile"
)

// UploadHandler handles POST /api/v1/uploads/{kind}.
type UploadHandler struct {
	uploader *ingest.Uploader
	store    *store.Store
	archive  *storage.Archive
	maxBytes int64
	notifier *events.Notifier
	logger   *zap.Logger
}

// NewUploadHandler creates an upload handler. archive may be nil.
func NewUploadHandler(uploader *ingest.Uploader, st *store.Store, archive *storage.Archive, maxBytes int64, logger *zap.Logger) *UploadHandler {
	if maxBytes <= 0 {
		maxBytes = 32 << 20
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UploadHandler{
		uploader: uploader,
		store:    st,
		archive:  archive,
		maxBytes: maxBytes,
		logger:   logger,
	}
}

// WithNotifier makes the handler announce committed uploads on n.
func (h *UploadHandler) WithNotifier(n *events.Notifier) *UploadHandler {
	h.notifier = n
	return h
}

// fieldFor returns the multipart field carrying the file of kind.
func fieldFor(kind string) (string, bool) {
	switch kind {
	case ingest.KindPerformance:
		return FieldPerformanceReport, true
	case ingest.KindProblems:
		return FieldProblem, true
	default:
		return "", false
	}
}

// ServeHTTP handles the upload HTTP request.
func (h *UploadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, qerrors.CodeInvalidRequest, "method not allowed", requestID)
		return
	}

	kind := r.PathValue("kind")
	field, ok := fieldFor(kind)
	if !ok {
		writeError(w, http.StatusNotFound, qerrors.CodeInvalidRequest, fmt.Sprintf("unknown upload kind %q", kind), requestID)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	file, header, err := r.FormFile(field)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeErr(w, r, qerrors.NewIngestError(qerrors.CodeFileTooLarge,
				fmt.Sprintf("upload exceeds %d bytes", h.maxBytes), err))
			return
		}
		writeErr(w, r, qerrors.NewIngestError(qerrors.CodeMissingFile,
			fmt.Sprintf("multipart field %s is required", field), err))
		return
	}
	defer file.Close()

	localPath, err := spool(file)
	if err != nil {
		writeErr(w, r, qerrors.NewIngestError(qerrors.CodeStagingFailed, "failed to store upload", err))
		return
	}
	defer os.Remove(localPath)

	uploadID := uuid.New().String()
	w.Header().Set("X-Upload-ID", uploadID)
	logger := h.logger.With(
		zap.String("upload_id", uploadID),
		zap.String("kind", kind),
		zap.String("filename", header.Filename),
		zap.String("request_id", requestID))

	summary, err := h.uploader.Upload(r.Context(), kind, localPath)
	if err != nil {
		logger.Error("Upload failed", zap.Error(err))
		writeErr(w, r, err)
		return
	}

	rec := &store.UploadRecord{
		UploadID:   uploadID,
		Kind:       kind,
		Filename:   filepath.Base(header.Filename),
		RowsRead:   summary.RowsRead,
		Status:     summary.Status,
		TopMessage: summary.TopMessage,
	}
	if h.archive != nil {
		entry, err := h.archive.Put(r.Context(), kind, uploadID, localPath)
		if err != nil {
			logger.Warn("Archiving upload failed", zap.Error(err))
		} else {
			rec.ArchivePath = entry.Path
			rec.Fingerprint = entry.Fingerprint
		}
	}
	if rec.Fingerprint == "" {
		if fp, _, err := storage.FingerprintFile(localPath); err == nil {
			rec.Fingerprint = fp
		}
	}
	if err := h.store.RecordUpload(r.Context(), rec); err != nil {
		logger.Warn("Recording upload failed", zap.Error(err))
	}

	if h.notifier != nil && summary.Status == ingest.StatusSuccess {
		h.notifier.Publish(events.Event{Type: events.UploadCommitted, Subject: kind, UploadID: uploadID})
	}

	logger.Info("Upload processed",
		zap.String("status", summary.Status),
		zap.Int("rows", summary.RowsRead))
	writeJSON(w, http.StatusOK, summary)
}

// spool copies the uploaded body to a temporary file.
func spool(src io.Reader) (string, error) {
	tmp, err := os.CreateTemp("", "qbench-upload-*.csv")
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}
