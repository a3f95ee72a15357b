package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/dukerupert/comptoir/internal/domain"
	"github.com/dukerupert/comptoir/internal/handler"
	"github.com/dukerupert/comptoir/internal/service"
)

// Notifications are the current user's in-app notifications.
type Notifications interface {
	List(ctx context.Context, params service.ListNotificationsParams) ([]service.Notification, error)
	MarkRead(ctx context.Context, id uuid.UUID) (*service.Notification, error)
	Dismiss(ctx context.Context, id uuid.UUID) error
}

type NotificationHandler struct {
	notifications Notifications
}

func NewNotificationHandler(notifications Notifications) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

// List handles GET /api/notifications?unread=true&limit=&offset=
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	var params service.ListNotificationsParams
	if raw := r.URL.Query().Get("unread"); raw != "" {
		unread, err := strconv.ParseBool(raw)
		if err != nil {
			handler.ValidationErrorResponse(w, r, domain.NewValidationError("api.ListNotifications", "unread", "must be true or false"))
			return
		}
		params.UnreadOnly = unread
	}
	var err error
	if params.Limit, params.Offset, err = pagination(r); err != nil {
		handler.ValidationErrorResponse(w, r, err)
		return
	}

	items, err := h.notifications.List(r.Context(), params)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, map[string]any{"notifications": items})
}

// MarkRead handles POST /api/notifications/{id}/read
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	n, err := h.notifications.MarkRead(r.Context(), id)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, n)
}

// Dismiss handles POST /api/notifications/{id}/dismiss
func (h *NotificationHandler) Dismiss(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.notifications.Dismiss(r.Context(), id); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
