package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/google/uuid"

	"github.com/dukerupert/comptoir/internal/domain"
	"github.com/dukerupert/comptoir/internal/service"
)

var errNotImplemented = errors.New("not implemented")

// =============================================================================
// MOCK DOCUMENTS
// =============================================================================

type mockDocuments struct {
	createDraftFunc  func(ctx context.Context, params service.CreateDocumentParams) (*service.DocumentDetail, error)
	updateDraftFunc  func(ctx context.Context, id uuid.UUID, params service.UpdateDocumentParams) (*service.DocumentDetail, error)
	sendFunc         func(ctx context.Context, id uuid.UUID) (*service.DocumentDetail, error)
	cancelFunc       func(ctx context.Context, id uuid.UUID) (*service.Document, error)
	acceptQuoteFunc  func(ctx context.Context, id uuid.UUID) (*service.Document, error)
	rejectQuoteFunc  func(ctx context.Context, id uuid.UUID) (*service.Document, error)
	signQuoteFunc    func(ctx context.Context, id uuid.UUID, params service.SignQuoteParams) (*service.Document, error)
	convertQuoteFunc func(ctx context.Context, id uuid.UUID, params service.ConvertQuoteParams) (*service.DocumentDetail, error)
	getFunc          func(ctx context.Context, id uuid.UUID) (*service.DocumentDetail, error)
	listFunc         func(ctx context.Context, params service.ListDocumentsParams) ([]service.Document, error)
	deleteFunc       func(ctx context.Context, id uuid.UUID) error
}

func (m *mockDocuments) CreateDraft(ctx context.Context, params service.CreateDocumentParams) (*service.DocumentDetail, error) {
	if m.createDraftFunc != nil {
		return m.createDraftFunc(ctx, params)
	}
	return nil, errNotImplemented
}

func (m *mockDocuments) UpdateDraft(ctx context.Context, id uuid.UUID, params service.UpdateDocumentParams) (*service.DocumentDetail, error) {
	if m.updateDraftFunc != nil {
		return m.updateDraftFunc(ctx, id, params)
	}
	return nil, errNotImplemented
}

func (m *mockDocuments) Send(ctx context.Context, id uuid.UUID) (*service.DocumentDetail, error) {
	if m.sendFunc != nil {
		return m.sendFunc(ctx, id)
	}
	return nil, errNotImplemented
}

func (m *mockDocuments) Cancel(ctx context.Context, id uuid.UUID) (*service.Document, error) {
	if m.cancelFunc != nil {
		return m.cancelFunc(ctx, id)
	}
	return nil, errNotImplemented
}

func (m *mockDocuments) AcceptQuote(ctx context.Context, id uuid.UUID) (*service.Document, error) {
	if m.acceptQuoteFunc != nil {
		return m.acceptQuoteFunc(ctx, id)
	}
	return nil, errNotImplemented
}

func (m *mockDocuments) RejectQuote(ctx context.Context, id uuid.UUID) (*service.Document, error) {
	if m.rejectQuoteFunc != nil {
		return m.rejectQuoteFunc(ctx, id)
	}
	return nil, errNotImplemented
}

func (m *mockDocuments) SignQuote(ctx context.Context, id uuid.UUID, params service.SignQuoteParams) (*service.Document, error) {
	if m.signQuoteFunc != nil {
		return m.signQuoteFunc(ctx, id, params)
	}
	return nil, errNotImplemented
}

func (m *mockDocuments) ConvertQuote(ctx context.Context, id uuid.UUID, params service.ConvertQuoteParams) (*service.DocumentDetail, error) {
	if m.convertQuoteFunc != nil {
		return m.convertQuoteFunc(ctx, id, params)
	}
	return nil, errNotImplemented
}

func (m *mockDocuments) Get(ctx context.Context, id uuid.UUID) (*service.DocumentDetail, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, id)
	}
	return nil, errNotImplemented
}

func (m *mockDocuments) List(ctx context.Context, params service.ListDocumentsParams) ([]service.Document, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, params)
	}
	return nil, errNotImplemented
}

func (m *mockDocuments) Delete(ctx context.Context, id uuid.UUID) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, id)
	}
	return errNotImplemented
}

// =============================================================================
// MOCK PAYMENTS
// =============================================================================

type mockPayments struct {
	createCheckoutSessionFunc  func(ctx context.Context, invoiceID uuid.UUID, successURL, cancelURL string) (string, error)
	startPublicCheckoutFunc    func(ctx context.Context, invoiceID uuid.UUID, successURL, cancelURL string) (string, error)
	confirmCheckoutSessionFunc func(ctx context.Context, invoiceID uuid.UUID, sessionID string) (domain.ReconcileResult, error)
	recordManualPaymentFunc    func(ctx context.Context, invoiceID uuid.UUID, params service.RecordPaymentParams) (domain.ReconcileResult, error)
	listPaymentsFunc           func(ctx context.Context, invoiceID uuid.UUID) ([]service.Payment, error)
}

func (m *mockPayments) CreateCheckoutSession(ctx context.Context, invoiceID uuid.UUID, successURL, cancelURL string) (string, error) {
	if m.createCheckoutSessionFunc != nil {
		return m.createCheckoutSessionFunc(ctx, invoiceID, successURL, cancelURL)
	}
	return "", errNotImplemented
}

func (m *mockPayments) StartPublicCheckout(ctx context.Context, invoiceID uuid.UUID, successURL, cancelURL string) (string, error) {
	if m.startPublicCheckoutFunc != nil {
		return m.startPublicCheckoutFunc(ctx, invoiceID, successURL, cancelURL)
	}
	return "", errNotImplemented
}

func (m *mockPayments) ConfirmCheckoutSession(ctx context.Context, invoiceID uuid.UUID, sessionID string) (domain.ReconcileResult, error) {
	if m.confirmCheckoutSessionFunc != nil {
		return m.confirmCheckoutSessionFunc(ctx, invoiceID, sessionID)
	}
	return domain.ReconcileResult{}, errNotImplemented
}

func (m *mockPayments) RecordManualPayment(ctx context.Context, invoiceID uuid.UUID, params service.RecordPaymentParams) (domain.ReconcileResult, error) {
	if m.recordManualPaymentFunc != nil {
		return m.recordManualPaymentFunc(ctx, invoiceID, params)
	}
	return domain.ReconcileResult{}, errNotImplemented
}

func (m *mockPayments) ListPayments(ctx context.Context, invoiceID uuid.UUID) ([]service.Payment, error) {
	if m.listPaymentsFunc != nil {
		return m.listPaymentsFunc(ctx, invoiceID)
	}
	return nil, errNotImplemented
}

// =============================================================================
// MOCK NOTIFICATIONS
// =============================================================================

type mockNotifications struct {
	listFunc     func(ctx context.Context, params service.ListNotificationsParams) ([]service.Notification, error)
	markReadFunc func(ctx context.Context, id uuid.UUID) (*service.Notification, error)
	dismissFunc  func(ctx context.Context, id uuid.UUID) error
}

func (m *mockNotifications) List(ctx context.Context, params service.ListNotificationsParams) ([]service.Notification, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, params)
	}
	return nil, errNotImplemented
}

func (m *mockNotifications) MarkRead(ctx context.Context, id uuid.UUID) (*service.Notification, error) {
	if m.markReadFunc != nil {
		return m.markReadFunc(ctx, id)
	}
	return nil, errNotImplemented
}

func (m *mockNotifications) Dismiss(ctx context.Context, id uuid.UUID) error {
	if m.dismissFunc != nil {
		return m.dismissFunc(ctx, id)
	}
	return errNotImplemented
}

// =============================================================================
// HELPERS
// =============================================================================

// serve routes a single request through pattern so path values resolve.
func serve(pattern string, h http.HandlerFunc, method, target, body string) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	mux.HandleFunc(pattern, h)

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}
