package api

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/comptoir/internal/domain"
	"github.com/dukerupert/comptoir/internal/middleware"
	"github.com/dukerupert/comptoir/internal/service"
)

type errorJSON struct {
	Error struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields"`
	} `json:"error"`
}

func decodeError(t *testing.T, body []byte) errorJSON {
	t.Helper()
	var e errorJSON
	require.NoError(t, json.Unmarshal(body, &e))
	return e
}

// =============================================================================
// CREATE / UPDATE
// =============================================================================

func TestDocumentHandler_Create(t *testing.T) {
	var got service.CreateDocumentParams
	docs := &mockDocuments{
		createDraftFunc: func(ctx context.Context, params service.CreateDocumentParams) (*service.DocumentDetail, error) {
			got = params
			return &service.DocumentDetail{Document: service.Document{ID: uuid.New(), Type: params.Type, Status: domain.StatusDraft}}, nil
		},
	}
	h := NewDocumentHandler(docs)

	body := `{"type":"invoice","currency":"EUR","lines":[{"description":"Pose carrelage","quantity":"2.5","unit_price_cents":4000,"vat_rate":"20"}]}`
	rec := serve("POST /api/documents", h.Create, http.MethodPost, "/api/documents", body)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, domain.DocumentTypeInvoice, got.Type)
	require.Len(t, got.Lines, 1)
	assert.True(t, decimal.RequireFromString("2.5").Equal(got.Lines[0].Quantity))
	assert.Equal(t, int64(4000), got.Lines[0].UnitPriceCents)

	var out service.DocumentDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, domain.StatusDraft, out.Status)
}

func TestDocumentHandler_Create_ValidationFields(t *testing.T) {
	h := NewDocumentHandler(&mockDocuments{})

	rec := serve("POST /api/documents", h.Create, http.MethodPost, "/api/documents",
		`{"type":"receipt","lines":[{"description":"","unit_price_cents":-5}]}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	e := decodeError(t, rec.Body.Bytes())
	assert.Equal(t, domain.EINVALID, e.Error.Code)
	assert.Contains(t, e.Error.Fields, "type")
	assert.Contains(t, e.Error.Fields, "lines[0].description")
	assert.Contains(t, e.Error.Fields, "lines[0].unit_price_cents")
}

func TestDocumentHandler_Update_LockedDocument(t *testing.T) {
	docs := &mockDocuments{
		updateDraftFunc: func(ctx context.Context, id uuid.UUID, params service.UpdateDocumentParams) (*service.DocumentDetail, error) {
			return nil, domain.ErrDocumentLocked
		},
	}
	h := NewDocumentHandler(docs)

	rec := serve("PUT /api/documents/{id}", h.Update, http.MethodPut, "/api/documents/"+uuid.NewString(), `{"notes":"late edit"}`)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, domain.ECONFLICT, decodeError(t, rec.Body.Bytes()).Error.Code)
}

// =============================================================================
// READS
// =============================================================================

func TestDocumentHandler_List(t *testing.T) {
	var got service.ListDocumentsParams
	docs := &mockDocuments{
		listFunc: func(ctx context.Context, params service.ListDocumentsParams) ([]service.Document, error) {
			got = params
			return []service.Document{{ID: uuid.New(), Number: "F-2026-0001"}}, nil
		},
	}
	h := NewDocumentHandler(docs)

	rec := serve("GET /api/documents", h.List, http.MethodGet, "/api/documents?type=invoice&status=overdue&limit=20&offset=40", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, service.ListDocumentsParams{
		Type:   domain.DocumentTypeInvoice,
		Status: domain.StatusOverdue,
		Limit:  20,
		Offset: 40,
	}, got)

	var out struct {
		Documents []service.Document `json:"documents"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "F-2026-0001", out.Documents[0].Number)
}

func TestDocumentHandler_List_BadQuery(t *testing.T) {
	h := NewDocumentHandler(&mockDocuments{})

	for _, target := range []string{
		"/api/documents?type=receipt",
		"/api/documents?limit=-1",
		"/api/documents?offset=abc",
	} {
		rec := serve("GET /api/documents", h.List, http.MethodGet, target, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestDocumentHandler_Get(t *testing.T) {
	id := uuid.New()
	docs := &mockDocuments{
		getFunc: func(ctx context.Context, got uuid.UUID) (*service.DocumentDetail, error) {
			if got != id {
				return nil, domain.ErrDocumentNotFound
			}
			return &service.DocumentDetail{Document: service.Document{ID: id}}, nil
		},
	}
	h := NewDocumentHandler(docs)

	rec := serve("GET /api/documents/{id}", h.Get, http.MethodGet, "/api/documents/"+id.String(), "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve("GET /api/documents/{id}", h.Get, http.MethodGet, "/api/documents/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve("GET /api/documents/{id}", h.Get, http.MethodGet, "/api/documents/42", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec.Body.Bytes()).Error.Fields, "id")
}

// =============================================================================
// LIFECYCLE
// =============================================================================

func TestDocumentHandler_Transitions(t *testing.T) {
	id := uuid.New()
	var calls []string
	record := func(name string, status domain.DocumentStatus) func(context.Context, uuid.UUID) (*service.Document, error) {
		return func(ctx context.Context, got uuid.UUID) (*service.Document, error) {
			calls = append(calls, name)
			return &service.Document{ID: got, Status: status}, nil
		}
	}
	docs := &mockDocuments{
		cancelFunc:      record("cancel", domain.StatusCancelled),
		acceptQuoteFunc: record("accept", domain.StatusAccepted),
		rejectQuoteFunc: record("reject", domain.StatusRejected),
		sendFunc: func(ctx context.Context, got uuid.UUID) (*service.DocumentDetail, error) {
			calls = append(calls, "send")
			return &service.DocumentDetail{Document: service.Document{ID: got, Status: domain.StatusSent, Number: "F-2026-0007"}}, nil
		},
	}
	h := NewDocumentHandler(docs)

	tests := []struct {
		pattern string
		handler http.HandlerFunc
		action  string
		status  domain.DocumentStatus
	}{
		{"POST /api/documents/{id}/send", h.Send, "send", domain.StatusSent},
		{"POST /api/documents/{id}/cancel", h.Cancel, "cancel", domain.StatusCancelled},
		{"POST /api/documents/{id}/accept", h.Accept, "accept", domain.StatusAccepted},
		{"POST /api/documents/{id}/reject", h.Reject, "reject", domain.StatusRejected},
	}
	for _, tt := range tests {
		t.Run(tt.action, func(t *testing.T) {
			rec := serve(tt.pattern, tt.handler, http.MethodPost, "/api/documents/"+id.String()+"/"+tt.action, "")
			require.Equal(t, http.StatusOK, rec.Code)

			var out service.Document
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
			assert.Equal(t, tt.status, out.Status)
			assert.Equal(t, id, out.ID)
		})
	}
	assert.Equal(t, []string{"send", "cancel", "accept", "reject"}, calls)
}

func TestDocumentHandler_Send_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"no lines", domain.ErrNoLineItems, http.StatusBadRequest},
		{"no recipient", domain.ErrNoRecipient, http.StatusBadRequest},
		{"paid invoice cancelled", domain.ErrInvalidTransition, http.StatusConflict},
		{"numbering contention", domain.Unavailable(nil, "numbering.Next", "Numbering is busy, retry"), http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewDocumentHandler(&mockDocuments{
				sendFunc: func(ctx context.Context, id uuid.UUID) (*service.DocumentDetail, error) { return nil, tt.err },
			})
			rec := serve("POST /api/documents/{id}/send", h.Send, http.MethodPost, "/api/documents/"+uuid.NewString()+"/send", "")
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestDocumentHandler_Convert(t *testing.T) {
	quoteID := uuid.New()
	due := time.Date(2026, 5, 31, 0, 0, 0, 0, time.UTC)

	var got service.ConvertQuoteParams
	docs := &mockDocuments{
		convertQuoteFunc: func(ctx context.Context, id uuid.UUID, params service.ConvertQuoteParams) (*service.DocumentDetail, error) {
			got = params
			return &service.DocumentDetail{Document: service.Document{ID: uuid.New(), Type: domain.DocumentTypeInvoice, SourceQuoteID: &id}}, nil
		},
	}
	h := NewDocumentHandler(docs)

	rec := serve("POST /api/documents/{id}/convert", h.Convert, http.MethodPost, "/api/documents/"+quoteID.String()+"/convert", `{"due_date":"2026-05-31T00:00:00Z"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, got.DueDate)
	assert.True(t, due.Equal(*got.DueDate))

	var out service.DocumentDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, quoteID, *out.SourceQuoteID)

	// Without a body the service chooses the due date.
	got = service.ConvertQuoteParams{}
	rec = serve("POST /api/documents/{id}/convert", h.Convert, http.MethodPost, "/api/documents/"+quoteID.String()+"/convert", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Nil(t, got.DueDate)
}

func TestDocumentHandler_Delete(t *testing.T) {
	docs := &mockDocuments{
		deleteFunc: func(ctx context.Context, id uuid.UUID) error { return nil },
	}
	h := NewDocumentHandler(docs)

	rec := serve("DELETE /api/documents/{id}", h.Delete, http.MethodDelete, "/api/documents/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

// =============================================================================
// PUBLIC SIGNATURE
// =============================================================================

func TestDocumentHandler_Sign_RecordsClientIP(t *testing.T) {
	signedAt := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	var got service.SignQuoteParams
	docs := &mockDocuments{
		signQuoteFunc: func(ctx context.Context, id uuid.UUID, params service.SignQuoteParams) (*service.Document, error) {
			got = params
			return &service.Document{ID: id, Number: "D-2026-0003", Status: domain.StatusAccepted, SignedAt: &signedAt, TotalCents: 120000}, nil
		},
	}
	h := NewDocumentHandler(docs)
	withIP := middleware.WithClientIP(false)(http.HandlerFunc(h.Sign))

	rec := serve("POST /quotes/{id}/sign", withIP.ServeHTTP, http.MethodPost, "/quotes/"+uuid.NewString()+"/sign",
		`{"signer_name":"Claire Martin","signer_email":"claire@example.fr"}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Claire Martin", got.SignerName)
	assert.Equal(t, "192.0.2.1", got.ClientIP)
	assert.NotContains(t, rec.Body.String(), "total_cents", "the public response does not expose amounts")
	assert.Contains(t, rec.Body.String(), `"status":"accepted"`)
}

func TestDocumentHandler_Sign_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
	}{
		{"missing signer", `{"signer_email":"claire@example.fr"}`, nil, http.StatusBadRequest},
		{"bad email", `{"signer_name":"Claire","signer_email":"claire"}`, nil, http.StatusBadRequest},
		{"client ip cannot be forged", `{"signer_name":"Claire","ClientIP":"10.0.0.1"}`, nil, http.StatusBadRequest},
		{"image key cannot be chosen", `{"signer_name":"Claire","signature_image_key":"signatures/other.png"}`, nil, http.StatusBadRequest},
		{"image without a store", `{"signer_name":"Claire","signature_image":"data:image/png;base64,iVBORw0KGgo="}`, nil, http.StatusBadRequest},
		{"already signed", `{"signer_name":"Claire"}`, domain.ErrAlreadySigned, http.StatusConflict},
		{"expired", `{"signer_name":"Claire"}`, domain.ErrQuoteExpired, http.StatusGone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewDocumentHandler(&mockDocuments{
				signQuoteFunc: func(ctx context.Context, id uuid.UUID, params service.SignQuoteParams) (*service.Document, error) {
					if tt.err == nil {
						t.Fatal("service reached with an invalid request")
					}
					return nil, tt.err
				},
			})
			rec := serve("POST /quotes/{id}/sign", h.Sign, http.MethodPost, "/quotes/"+uuid.NewString()+"/sign", tt.body)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

type fakeSignatures struct {
	saveErr error
	saved   []string
	deleted []string
}

func (f *fakeSignatures) SaveSignature(ctx context.Context, quoteID uuid.UUID, dataURI string) (string, error) {
	if f.saveErr != nil {
		return "", f.saveErr
	}
	key := "signatures/" + quoteID.String() + "/ink.png"
	f.saved = append(f.saved, key)
	return key, nil
}

func (f *fakeSignatures) DeleteSignature(ctx context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	return nil
}

func TestDocumentHandler_Sign_StoresSignatureImage(t *testing.T) {
	quoteID := uuid.New()
	body := `{"signer_name":"Claire Martin","signature_image":"data:image/png;base64,iVBORw0KGgo="}`

	t.Run("key recorded with the signature", func(t *testing.T) {
		var got service.SignQuoteParams
		sigs := &fakeSignatures{}
		h := NewDocumentHandler(&mockDocuments{
			signQuoteFunc: func(ctx context.Context, id uuid.UUID, params service.SignQuoteParams) (*service.Document, error) {
				got = params
				return &service.Document{ID: id, Status: domain.StatusAccepted}, nil
			},
		}, WithSignatures(sigs))

		rec := serve("POST /quotes/{id}/sign", h.Sign, http.MethodPost, "/quotes/"+quoteID.String()+"/sign", body)

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "signatures/"+quoteID.String()+"/ink.png", got.SignatureImageKey)
		assert.Empty(t, sigs.deleted)
	})

	t.Run("image removed when signing fails", func(t *testing.T) {
		sigs := &fakeSignatures{}
		h := NewDocumentHandler(&mockDocuments{
			signQuoteFunc: func(ctx context.Context, id uuid.UUID, params service.SignQuoteParams) (*service.Document, error) {
				return nil, domain.ErrAlreadySigned
			},
		}, WithSignatures(sigs))

		rec := serve("POST /quotes/{id}/sign", h.Sign, http.MethodPost, "/quotes/"+quoteID.String()+"/sign", body)

		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, sigs.saved, sigs.deleted)
	})

	t.Run("invalid image never reaches the service", func(t *testing.T) {
		sigs := &fakeSignatures{saveErr: domain.Invalid("test", "Signature image must be a PNG or JPEG data URI")}
		h := NewDocumentHandler(&mockDocuments{
			signQuoteFunc: func(ctx context.Context, id uuid.UUID, params service.SignQuoteParams) (*service.Document, error) {
				t.Fatal("service reached with an invalid image")
				return nil, nil
			},
		}, WithSignatures(sigs))

		rec := serve("POST /quotes/{id}/sign", h.Sign, http.MethodPost, "/quotes/"+quoteID.String()+"/sign", body)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
