// Package api exposes the ledger services as JSON over HTTP.
package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/comptoir/internal/domain"
	"github.com/dukerupert/comptoir/internal/handler"
	"github.com/dukerupert/comptoir/internal/middleware"
	"github.com/dukerupert/comptoir/internal/service"
)

// Documents is the document lifecycle the API drives.
type Documents interface {
	CreateDraft(ctx context.Context, params service.CreateDocumentParams) (*service.DocumentDetail, error)
	UpdateDraft(ctx context.Context, id uuid.UUID, params service.UpdateDocumentParams) (*service.DocumentDetail, error)
	Send(ctx context.Context, id uuid.UUID) (*service.DocumentDetail, error)
	Cancel(ctx context.Context, id uuid.UUID) (*service.Document, error)
	AcceptQuote(ctx context.Context, id uuid.UUID) (*service.Document, error)
	RejectQuote(ctx context.Context, id uuid.UUID) (*service.Document, error)
	SignQuote(ctx context.Context, id uuid.UUID, params service.SignQuoteParams) (*service.Document, error)
	ConvertQuote(ctx context.Context, quoteID uuid.UUID, params service.ConvertQuoteParams) (*service.DocumentDetail, error)
	Get(ctx context.Context, id uuid.UUID) (*service.DocumentDetail, error)
	List(ctx context.Context, params service.ListDocumentsParams) ([]service.Document, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Signatures files the image drawn on the public signature page.
type Signatures interface {
	SaveSignature(ctx context.Context, quoteID uuid.UUID, dataURI string) (string, error)
	DeleteSignature(ctx context.Context, key string) error
}

// DocumentHandler serves /api/documents and the public quote signature.
type DocumentHandler struct {
	documents  Documents
	signatures Signatures
}

type DocumentOption func(*DocumentHandler)

// WithSignatures accepts signature images on POST /quotes/{id}/sign.
func WithSignatures(s Signatures) DocumentOption {
	return func(h *DocumentHandler) { h.signatures = s }
}

func NewDocumentHandler(documents Documents, opts ...DocumentOption) *DocumentHandler {
	h := &DocumentHandler{documents: documents}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Create handles POST /api/documents
func (h *DocumentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var params service.CreateDocumentParams
	if err := handler.DecodeJSON(w, r, &params); err != nil {
		handler.ValidationErrorResponse(w, r, err)
		return
	}
	doc, err := h.documents.CreateDraft(r.Context(), params)
	if err != nil {
		handler.ValidationErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusCreated, doc)
}

// List handles GET /api/documents?type=&status=&limit=&offset=
func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := service.ListDocumentsParams{
		Type:   domain.DocumentType(q.Get("type")),
		Status: domain.DocumentStatus(q.Get("status")),
	}
	if params.Type != "" && !params.Type.Valid() {
		handler.ValidationErrorResponse(w, r, domain.NewValidationError("api.ListDocuments", "type", "must be one of: invoice quote"))
		return
	}
	var err error
	if params.Limit, params.Offset, err = pagination(r); err != nil {
		handler.ValidationErrorResponse(w, r, err)
		return
	}

	docs, err := h.documents.List(r.Context(), params)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

// Get handles GET /api/documents/{id}
func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	doc, err := h.documents.Get(r.Context(), id)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, doc)
}

// Update handles PUT /api/documents/{id}
func (h *DocumentHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var params service.UpdateDocumentParams
	if err := handler.DecodeJSON(w, r, &params); err != nil {
		handler.ValidationErrorResponse(w, r, err)
		return
	}
	doc, err := h.documents.UpdateDraft(r.Context(), id, params)
	if err != nil {
		handler.ValidationErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, doc)
}

// Delete handles DELETE /api/documents/{id}
func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.documents.Delete(r.Context(), id); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Send handles POST /api/documents/{id}/send
func (h *DocumentHandler) Send(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	doc, err := h.documents.Send(r.Context(), id)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, doc)
}

// Cancel handles POST /api/documents/{id}/cancel
func (h *DocumentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.documents.Cancel)
}

// Accept handles POST /api/documents/{id}/accept
func (h *DocumentHandler) Accept(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.documents.AcceptQuote)
}

// Reject handles POST /api/documents/{id}/reject
func (h *DocumentHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.documents.RejectQuote)
}

func (h *DocumentHandler) transition(w http.ResponseWriter, r *http.Request, move func(context.Context, uuid.UUID) (*service.Document, error)) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	doc, err := move(r.Context(), id)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, doc)
}

// Convert handles POST /api/documents/{id}/convert. The body is optional.
func (h *DocumentHandler) Convert(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var params service.ConvertQuoteParams
	if r.ContentLength != 0 {
		if err := handler.DecodeJSON(w, r, &params); err != nil {
			handler.ValidationErrorResponse(w, r, err)
			return
		}
	}
	invoice, err := h.documents.ConvertQuote(r.Context(), id, params)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusCreated, invoice)
}

type signRequest struct {
	SignerName     string `json:"signer_name" validate:"required,max=200"`
	SignerEmail    string `json:"signer_email" validate:"omitempty,email"`
	SignatureImage string `json:"signature_image"`
}

// Sign handles the public POST /quotes/{id}/sign. The quote is resolved by
// id alone; the signer's address and optional drawn signature are recorded
// as evidence.
func (h *DocumentHandler) Sign(w http.ResponseWriter, r *http.Request) {
	const op = "api.DocumentHandler.Sign"

	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req signRequest
	if err := handler.DecodeJSON(w, r, &req); err != nil {
		handler.ValidationErrorResponse(w, r, err)
		return
	}
	params := service.SignQuoteParams{
		SignerName:  req.SignerName,
		SignerEmail: req.SignerEmail,
		ClientIP:    middleware.GetClientIPFromContext(r.Context()),
	}

	if req.SignatureImage != "" {
		if h.signatures == nil {
			handler.ErrorResponse(w, r, domain.Invalid(op, "Signature images are not accepted"))
			return
		}
		key, err := h.signatures.SaveSignature(r.Context(), id, req.SignatureImage)
		if err != nil {
			handler.ErrorResponse(w, r, err)
			return
		}
		params.SignatureImageKey = key
	}

	doc, err := h.documents.SignQuote(r.Context(), id, params)
	if err != nil {
		if params.SignatureImageKey != "" {
			if derr := h.signatures.DeleteSignature(r.Context(), params.SignatureImageKey); derr != nil {
				middleware.GetLogger(r.Context()).Warn("failed to remove orphaned signature image",
					"key", params.SignatureImageKey, "error", derr)
			}
		}
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, signedQuote{
		ID:       doc.ID,
		Number:   doc.Number,
		Status:   doc.Status,
		SignedAt: doc.SignedAt,
	})
}

// signedQuote is what the public signer gets back; the rest of the document
// stays private to the organization.
type signedQuote struct {
	ID       uuid.UUID             `json:"id"`
	Number   string                `json:"number"`
	Status   domain.DocumentStatus `json:"status"`
	SignedAt *time.Time            `json:"signed_at"`
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := handler.PathUUID(r, "id")
	if err != nil {
		handler.ValidationErrorResponse(w, r, err)
		return uuid.Nil, false
	}
	return id, true
}

// pagination reads limit and offset. Zero values let the service apply its
// defaults.
func pagination(r *http.Request) (limit, offset int32, err error) {
	q := r.URL.Query()
	if raw := q.Get("limit"); raw != "" {
		n, perr := strconv.ParseInt(raw, 10, 32)
		if perr != nil || n < 0 {
			return 0, 0, domain.NewValidationError("api.pagination", "limit", "must be a non-negative integer")
		}
		limit = int32(n)
	}
	if raw := q.Get("offset"); raw != "" {
		n, perr := strconv.ParseInt(raw, 10, 32)
		if perr != nil || n < 0 {
			return 0, 0, domain.NewValidationError("api.pagination", "offset", "must be a non-negative integer")
		}
		offset = int32(n)
	}
	return limit, offset, nil
}
