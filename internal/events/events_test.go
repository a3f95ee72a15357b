package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	subjects []string
	payloads [][]byte
	err      error
	drained  bool
}

func (c *fakeConn) Publish(subject string, data []byte) error {
	if c.err != nil {
		return c.err
	}
	c.subjects = append(c.subjects, subject)
	c.payloads = append(c.payloads, data)
	return nil
}

func (c *fakeConn) Drain() error {
	c.drained = true
	return nil
}

func TestNATSPublisher_PublishesJSONOnSubject(t *testing.T) {
	fc := &fakeConn{}
	p := &NATSPublisher{conn: fc, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	org, doc := uuid.New(), uuid.New()

	ev := New(SubjectInvoicePaid, org, doc, map[string]string{"reference": "cs_test_1"})
	require.NoError(t, p.Publish(context.Background(), ev))

	require.Equal(t, []string{SubjectInvoicePaid}, fc.subjects)
	var decoded Event
	require.NoError(t, json.Unmarshal(fc.payloads[0], &decoded))
	assert.Equal(t, ev.ID, decoded.ID)
	assert.Equal(t, org, decoded.OrganizationID)
	assert.Equal(t, doc, decoded.DocumentID)
	assert.Equal(t, "cs_test_1", decoded.Attributes["reference"])

	require.NoError(t, p.Close())
	assert.True(t, fc.drained)
}

func TestPublishBestEffort_SwallowsErrors(t *testing.T) {
	fc := &fakeConn{err: errors.New("nats: connection closed")}
	p := &NATSPublisher{conn: fc}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	assert.NotPanics(t, func() {
		PublishBestEffort(context.Background(), p, logger, New(SubjectDocumentSent, uuid.New(), uuid.New(), nil))
		PublishBestEffort(context.Background(), nil, logger, New(SubjectDocumentSent, uuid.New(), uuid.New(), nil))
	})
	assert.Empty(t, fc.subjects)
}
