package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

type unreadCountResponse struct {
	Unread int `json:"unread"`
}

type markAllReadResponse struct {
	Updated int `json:"updated"`
}

func (h *Handler) listNotifications(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r.Context())
	limit, ok := queryLimit(r)
	if !ok {
		badRequest(w, r, "limit must be a non-negative integer")
		return
	}
	list, err := h.svc.Notifications.List(r.Context(), actor.UserID, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, toNotificationResponses(list))
}

func (h *Handler) unreadCount(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r.Context())
	count, err := h.svc.Notifications.UnreadCount(r.Context(), actor.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, unreadCountResponse{Unread: count})
}

func (h *Handler) markRead(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r.Context())
	if err := h.svc.Notifications.MarkRead(r.Context(), chi.URLParam(r, "notificationID"), actor.UserID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) markAllRead(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r.Context())
	updated, err := h.svc.Notifications.MarkAllRead(r.Context(), actor.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, markAllReadResponse{Updated: updated})
}
