package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const notificationColumns = `id, organization_id, user_id, type, document_id, title, body, dedupe_key,
    read_at, dismissed_at, created_at`

func scanNotification(row pgx.Row) (Notification, error) {
	var i Notification
	err := row.Scan(
		&i.ID,
		&i.OrganizationID,
		&i.UserID,
		&i.Type,
		&i.DocumentID,
		&i.Title,
		&i.Body,
		&i.DedupeKey,
		&i.ReadAt,
		&i.DismissedAt,
		&i.CreatedAt,
	)
	return i, err
}

// CreateNotification returns pgx.ErrNoRows when the dedupe key was already
// used.
const createNotification = `
INSERT INTO notifications (organization_id, user_id, type, document_id, title, body, dedupe_key)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (dedupe_key) DO NOTHING
RETURNING ` + notificationColumns

type CreateNotificationParams struct {
	OrganizationID pgtype.UUID `json:"organization_id"`
	UserID         pgtype.UUID `json:"user_id"`
	Type           string      `json:"type"`
	DocumentID     pgtype.UUID `json:"document_id"`
	Title          string      `json:"title"`
	Body           string      `json:"body"`
	DedupeKey      string      `json:"dedupe_key"`
}

func (q *Queries) CreateNotification(ctx context.Context, arg CreateNotificationParams) (Notification, error) {
	return scanNotification(q.db.QueryRow(ctx, createNotification,
		arg.OrganizationID,
		arg.UserID,
		arg.Type,
		arg.DocumentID,
		arg.Title,
		arg.Body,
		arg.DedupeKey,
	))
}

const listNotifications = `
SELECT ` + notificationColumns + `
FROM notifications
WHERE organization_id = $1 AND user_id = $2
  AND dismissed_at IS NULL
  AND (NOT $3::boolean OR read_at IS NULL)
ORDER BY created_at DESC
LIMIT $4 OFFSET $5
`

type ListNotificationsParams struct {
	OrganizationID pgtype.UUID `json:"organization_id"`
	UserID         pgtype.UUID `json:"user_id"`
	UnreadOnly     bool        `json:"unread_only"`
	Limit          int32       `json:"limit"`
	Offset         int32       `json:"offset"`
}

func (q *Queries) ListNotifications(ctx context.Context, arg ListNotificationsParams) ([]Notification, error) {
	rows, err := q.db.Query(ctx, listNotifications,
		arg.OrganizationID,
		arg.UserID,
		arg.UnreadOnly,
		arg.Limit,
		arg.Offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Notification
	for rows.Next() {
		i, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const markNotificationRead = `
UPDATE notifications SET read_at = COALESCE(read_at, now())
WHERE id = $1 AND organization_id = $2 AND user_id = $3
RETURNING ` + notificationColumns

type MarkNotificationReadParams struct {
	ID             pgtype.UUID `json:"id"`
	OrganizationID pgtype.UUID `json:"organization_id"`
	UserID         pgtype.UUID `json:"user_id"`
}

func (q *Queries) MarkNotificationRead(ctx context.Context, arg MarkNotificationReadParams) (Notification, error) {
	return scanNotification(q.db.QueryRow(ctx, markNotificationRead, arg.ID, arg.OrganizationID, arg.UserID))
}

const dismissNotification = `
UPDATE notifications SET dismissed_at = COALESCE(dismissed_at, now())
WHERE id = $1 AND organization_id = $2 AND user_id = $3
RETURNING ` + notificationColumns

type DismissNotificationParams struct {
	ID             pgtype.UUID `json:"id"`
	OrganizationID pgtype.UUID `json:"organization_id"`
	UserID         pgtype.UUID `json:"user_id"`
}

func (q *Queries) DismissNotification(ctx context.Context, arg DismissNotificationParams) (Notification, error) {
	return scanNotification(q.db.QueryRow(ctx, dismissNotification, arg.ID, arg.OrganizationID, arg.UserID))
}
