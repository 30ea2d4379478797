// internal/api/documents.go
package api

import (
	"context"
	stderrors "errors"
	"net/http"
	"path/filepath"
	"time"

	"gacp-certification/internal/common/errors"
	"gacp-certification/internal/common/metrics"
	"gacp-certification/internal/wizard"
)

const uploadTimeout = 30 * time.Second

var errNoStorage = stderrors.New("document storage is not configured")

// UploadDocument handles POST /wizard/{session}/documents/{slot}. The file is
// sent as the multipart field "file" and replaces whatever the slot held.
func (h *WizardHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	slot := r.PathValue("slot")
	if !h.catalog.Known(slot) {
		writeError(w, h.logger, r, errors.NewUnknownDocumentSlotError(slot))
		return
	}
	if h.documents == nil {
		writeError(w, h.logger, r, errors.NewDocumentUploadFailedError(slot, errNoStorage))
		return
	}
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		metrics.DocumentUploads.WithLabelValues(slot, "rejected").Inc()
		writeError(w, h.logger, r, errors.NewInvalidRequestError("invalid multipart upload: "+err.Error()))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		metrics.DocumentUploads.WithLabelValues(slot, "rejected").Inc()
		writeError(w, h.logger, r, errors.NewValidationError("file is required", map[string]string{"file": "required"}))
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	ctx, cancel := context.WithTimeout(r.Context(), uploadTimeout)
	defer cancel()

	previous, hadPrevious := sess.Store().Snapshot().Document(slot)
	url, err := h.documents.Upload(ctx, sess.ID, slot, header.Filename, contentType, file)
	if err != nil {
		metrics.DocumentUploads.WithLabelValues(slot, "error").Inc()
		writeError(w, h.logger, r, errors.NewDocumentUploadFailedError(slot, err))
		return
	}

	doc := wizard.DocumentUpload{
		ID:       slot,
		Name:     filepath.Base(header.Filename),
		Type:     contentType,
		URL:      url,
		Uploaded: true,
		Size:     header.Size,
	}
	if err := sess.Store().UpsertDocument(doc); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	metrics.DocumentUploads.WithLabelValues(slot, "success").Inc()

	if hadPrevious && previous.URL != "" && previous.URL != url {
		h.deleteObject(ctx, slot, previous.URL)
	}

	stored, _ := sess.Store().Snapshot().Document(slot)
	writeJSON(w, http.StatusCreated, stored)
}

// RemoveDocument handles DELETE /wizard/{session}/documents/{slot}
func (h *WizardHandler) RemoveDocument(w http.ResponseWriter, r *http.Request) {
	slot := r.PathValue("slot")
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	doc, found := sess.Store().Snapshot().Document(slot)
	if !found {
		writeError(w, h.logger, r, errors.NewResourceNotFoundError("wizard", "document "+slot))
		return
	}
	sess.Store().RemoveDocument(slot)
	if doc.URL != "" && h.documents != nil {
		h.deleteObject(r.Context(), slot, doc.URL)
	}
	w.WriteHeader(http.StatusNoContent)
}

// deleteObject removes a replaced upload. Failures only leave an orphaned object.
func (h *WizardHandler) deleteObject(ctx context.Context, slot, url string) {
	if err := h.documents.Delete(ctx, url); err != nil {
		h.logger.Warn("failed to delete replaced document", map[string]interface{}{
			"slot":  slot,
			"url":   url,
			"error": err.Error(),
		})
	}
}

// Requirements handles GET /wizard/{session}/documents
func (h *WizardHandler) Requirements(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	st := sess.Store().Snapshot()
	reqs, err := h.catalog.Requirements(st)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	missing, err := h.catalog.MissingRequired(st)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"requirements":    reqs,
		"missingRequired": missing,
	})
}
