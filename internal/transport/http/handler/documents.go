package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-docshare/internal/application/document"
	"github.com/go-docshare/internal/domain"
	"github.com/go-docshare/internal/transport/http/middleware"
)

// multipartOverhead is headroom for form fields and part headers on top of
// the file size limit.
const multipartOverhead = 1 << 20

// DocumentHandler serves document CRUD and sharing endpoints.
type DocumentHandler struct {
	svc      document.Service
	maxBytes int64
}

func NewDocumentHandler(svc document.Service, maxUploadBytes int64) *DocumentHandler {
	return &DocumentHandler{svc: svc, maxBytes: maxUploadBytes}
}

// grantsView is returned by share mutations.
type grantsView struct {
	DocumentID string              `json:"_id"`
	SharedWith []domain.ShareGrant `json:"sharedWith"`
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	docs, err := h.svc.ListOwned(r.Context(), claims.UserID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeList(w, docs)
}

func (h *DocumentHandler) ListShared(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	docs, err := h.svc.ListShared(r.Context(), claims.UserID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeList(w, docs)
}

func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+multipartOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusBadRequest, "file too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	f, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "please upload a file")
		return
	}
	defer f.Close()

	doc, err := h.svc.Upload(r.Context(), document.UploadInput{
		Reader:       f,
		Filename:     header.Filename,
		Size:         header.Size,
		Title:        r.FormValue("title"),
		Description:  r.FormValue("description"),
		DocumentType: r.FormValue("documentType"),
		OwnerID:      claims.UserID,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, doc)
}

func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	d, err := h.svc.Get(r.Context(), claims.UserID, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, d)
}

func (h *DocumentHandler) Update(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var patch domain.DocumentPatch
	if err := decode(r, &patch); err != nil {
		writeServiceError(w, r, err)
		return
	}
	d, err := h.svc.Update(r.Context(), claims.UserID, chi.URLParam(r, "id"), patch)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, d)
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.svc.Delete(r.Context(), claims.UserID, chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "document deleted")
}

func (h *DocumentHandler) Share(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req domain.ShareRequest
	if err := decode(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	docID := chi.URLParam(r, "id")
	grants, err := h.svc.Share(r.Context(), claims.UserID, docID, req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, grantsView{DocumentID: docID, SharedWith: grants})
}

func (h *DocumentHandler) UpdateAccess(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req domain.UpdateAccessRequest
	if err := decode(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	docID := chi.URLParam(r, "id")
	grants, err := h.svc.UpdateAccess(r.Context(), claims.UserID, docID, chi.URLParam(r, "userId"), domain.AccessLevel(req.AccessLevel))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, grantsView{DocumentID: docID, SharedWith: grants})
}

func (h *DocumentHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	docID := chi.URLParam(r, "id")
	grants, err := h.svc.Revoke(r.Context(), claims.UserID, docID, chi.URLParam(r, "userId"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, grantsView{DocumentID: docID, SharedWith: grants})
}
