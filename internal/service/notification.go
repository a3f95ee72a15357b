package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/comptoir/internal/domain"
	"github.com/dukerupert/comptoir/internal/jobs"
	"github.com/dukerupert/comptoir/internal/postgres"
	"github.com/dukerupert/comptoir/internal/repository"
)

// ListNotificationsParams pages through the current user's notifications.
type ListNotificationsParams struct {
	UnreadOnly bool
	Limit      int32
	Offset     int32
}

// Notification is the API view of an in-app notification.
type Notification struct {
	ID         uuid.UUID  `json:"id"`
	Type       string     `json:"type"`
	DocumentID *uuid.UUID `json:"document_id,omitempty"`
	Title      string     `json:"title"`
	Body       string     `json:"body"`
	ReadAt     *time.Time `json:"read_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// NotificationService reads and updates the notifications of the user in the
// request context.
type NotificationService struct {
	store  repository.Store
	logger *slog.Logger
}

func NewNotificationService(store repository.Store, logger *slog.Logger) *NotificationService {
	return &NotificationService{store: store, logger: logger}
}

func (s *NotificationService) List(ctx context.Context, params ListNotificationsParams) ([]Notification, error) {
	orgID, userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	limit, offset := clampLimit(params.Limit, params.Offset)
	rows, err := s.store.ListNotifications(ctx, repository.ListNotificationsParams{
		OrganizationID: postgres.UUID(orgID),
		UserID:         postgres.UUID(userID),
		UnreadOnly:     params.UnreadOnly,
		Limit:          limit,
		Offset:         offset,
	})
	if err != nil {
		return nil, domain.Internal(err, "service.ListNotifications", "failed to list notifications")
	}
	out := make([]Notification, 0, len(rows))
	for _, n := range rows {
		out = append(out, toNotification(n))
	}
	return out, nil
}

func (s *NotificationService) MarkRead(ctx context.Context, id uuid.UUID) (*Notification, error) {
	const op = "service.MarkNotificationRead"

	orgID, userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	n, err := s.store.MarkNotificationRead(ctx, repository.MarkNotificationReadParams{
		ID:             postgres.UUID(id),
		OrganizationID: postgres.UUID(orgID),
		UserID:         postgres.UUID(userID),
	})
	if postgres.IsNotFound(err) {
		return nil, domain.WithOp(domain.ErrNotificationNotFound, op)
	}
	if err != nil {
		return nil, domain.Internal(err, op, "failed to update notification")
	}
	out := toNotification(n)
	return &out, nil
}

// Dismiss hides a notification from List. Dismissing twice is a no-op.
func (s *NotificationService) Dismiss(ctx context.Context, id uuid.UUID) error {
	const op = "service.DismissNotification"

	orgID, userID, err := requireUser(ctx)
	if err != nil {
		return err
	}
	_, err = s.store.DismissNotification(ctx, repository.DismissNotificationParams{
		ID:             postgres.UUID(id),
		OrganizationID: postgres.UUID(orgID),
		UserID:         postgres.UUID(userID),
	})
	if postgres.IsNotFound(err) {
		return domain.WithOp(domain.ErrNotificationNotFound, op)
	}
	if err != nil {
		return domain.Internal(err, op, "failed to dismiss notification")
	}
	return nil
}

// Retry inserts a notification whose first insert failed inside a ledger
// transaction. The dedupe key makes a retry of a row that did land a no-op.
func (s *NotificationService) Retry(ctx context.Context, orgID uuid.UUID, payload jobs.CreateNotificationPayload) error {
	_, err := s.store.CreateNotification(ctx, notificationParams(orgID, payload))
	if postgres.IsNotFound(err) {
		s.logger.DebugContext(ctx, "notification already exists", "dedupe_key", payload.DedupeKey)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	s.logger.InfoContext(ctx, "notification created on retry",
		"organization_id", orgID,
		"type", payload.Type,
		"dedupe_key", payload.DedupeKey,
	)
	return nil
}

func requireUser(ctx context.Context) (uuid.UUID, uuid.UUID, error) {
	orgID, err := domain.RequireOrganizationID(ctx)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	userID := domain.UserIDFromContext(ctx)
	if userID == uuid.Nil {
		return uuid.Nil, uuid.Nil, domain.Errorf(domain.EUNAUTHORIZED, "service.requireUser", "Authenticated user required")
	}
	return orgID, userID, nil
}

func toNotification(n repository.Notification) Notification {
	return Notification{
		ID:         postgres.FromUUID(n.ID),
		Type:       n.Type,
		DocumentID: uuidPtr(n.DocumentID.Bytes, n.DocumentID.Valid),
		Title:      n.Title,
		Body:       n.Body,
		ReadAt:     datePtr(n.ReadAt.Time, n.ReadAt.Valid),
		CreatedAt:  n.CreatedAt.Time,
	}
}
