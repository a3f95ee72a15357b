package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/dukerupert/comptoir/internal/email"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeMail struct {
	sent []email.Message
	err  error
}

func (f *fakeMail) Send(ctx context.Context, msg email.Message) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, msg)
	return "id", nil
}

func reminder(channel string) Reminder {
	return Reminder{
		OrganizationID:   uuid.New(),
		InvoiceID:        uuid.New(),
		Channel:          channel,
		Sequence:         1,
		OrganizationName: "L'Atelier",
		RecipientName:    "Camille",
		Email:            "camille@example.com",
		Phone:            "+33600000000",
		InvoiceNumber:    "FAC-2026-0012",
		AmountDueCents:   4200,
		Currency:         "EUR",
		DueDate:          time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		PayURL:           "https://pay.example.com/x",
	}
}

func TestChannelDispatcher_Email(t *testing.T) {
	mail := &fakeMail{}
	d := NewChannelDispatcher(mail, nil, discardLogger())

	require.NoError(t, d.Dispatch(context.Background(), reminder(ChannelEmail)))
	require.Len(t, mail.sent, 1)
	msg, ok := mail.sent[0].(email.ReminderEmail)
	require.True(t, ok)
	assert.Equal(t, "camille@example.com", msg.To)
	assert.Equal(t, "FAC-2026-0012", msg.InvoiceNumber)
	assert.Equal(t, int64(4200), msg.AmountDueCents)
}

func TestChannelDispatcher_SMS(t *testing.T) {
	ctrl := gomock.NewController(t)
	sms := NewMockSMSSender(ctrl)
	d := NewChannelDispatcher(&fakeMail{}, sms, discardLogger())

	sms.EXPECT().
		SendSMS(gomock.Any(), "+33600000000", gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, body string) error {
			assert.Contains(t, body, "FAC-2026-0012")
			assert.Contains(t, body, "42,00 €")
			assert.Contains(t, body, "https://pay.example.com/x")
			return nil
		})

	require.NoError(t, d.Dispatch(context.Background(), reminder(ChannelSMS)))
}

func TestChannelDispatcher_MissingAddress(t *testing.T) {
	ctrl := gomock.NewController(t)
	sms := NewMockSMSSender(ctrl)
	mail := &fakeMail{}
	d := NewChannelDispatcher(mail, sms, discardLogger())

	r := reminder(ChannelEmail)
	r.Email = ""
	assert.ErrorIs(t, d.Dispatch(context.Background(), r), ErrNoAddress)

	r = reminder(ChannelSMS)
	r.Phone = ""
	assert.ErrorIs(t, d.Dispatch(context.Background(), r), ErrNoAddress)
	assert.Empty(t, mail.sent)

	noSMS := NewChannelDispatcher(mail, nil, discardLogger())
	assert.ErrorIs(t, noSMS.Dispatch(context.Background(), reminder(ChannelSMS)), ErrNoAddress)
}

func TestChannelDispatcher_UnknownChannel(t *testing.T) {
	d := NewChannelDispatcher(&fakeMail{}, nil, discardLogger())
	assert.ErrorIs(t, d.Dispatch(context.Background(), reminder("fax")), ErrUnknownChannel)
}

func TestChannelDispatcher_PropagatesSendError(t *testing.T) {
	boom := errors.New("smtp down")
	d := NewChannelDispatcher(&fakeMail{err: boom}, nil, discardLogger())
	assert.ErrorIs(t, d.Dispatch(context.Background(), reminder(ChannelEmail)), boom)
}

func newTestGateway(url string, maxRetries uint64) *HTTPGateway {
	g := NewHTTPGateway(GatewayConfig{URL: url, Token: "tok", Sender: "ATELIER", MaxRetries: maxRetries}, discardLogger())
	g.backoff = func() backoff.BackOff { return backoff.NewConstantBackOff(time.Millisecond) }
	return g
}

func TestHTTPGateway_SendSMS(t *testing.T) {
	var got smsRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	err := newTestGateway(srv.URL, 2).SendSMS(context.Background(), "+33611111111", "bonjour")
	require.NoError(t, err)
	assert.Equal(t, smsRequest{To: "+33611111111", Body: "bonjour", Sender: "ATELIER"}, got)
}

func TestHTTPGateway_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	require.NoError(t, newTestGateway(srv.URL, 3).SendSMS(context.Background(), "+33611111111", "x"))
	assert.Equal(t, int32(3), calls.Load())
}

func TestHTTPGateway_ClientErrorIsPermanent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "invalid number", http.StatusBadRequest)
	}))
	defer srv.Close()

	err := newTestGateway(srv.URL, 3).SendSMS(context.Background(), "bogus", "x")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "400"))
	assert.Equal(t, int32(1), calls.Load())
}

func TestHTTPGateway_GivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := newTestGateway(srv.URL, 2).SendSMS(context.Background(), "+33611111111", "x")
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())
}
