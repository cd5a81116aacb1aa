package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Tomlord1122/todo-share/internal/service"
)

type notificationList struct {
	Notifications []service.NotificationResponse `json:"notifications"`
	UnreadCount   int64                          `json:"unread_count"`
}

func (s *Server) listNotificationsHandler(w http.ResponseWriter, r *http.Request) {
	page, err := pageQuery(r)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	unreadOnly, _ := strconv.ParseBool(r.URL.Query().Get("unread_only"))

	list, err := s.notifications.List(r.Context(), currentUser(r).ID, unreadOnly, page)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithPage(w, notificationList{Notifications: list.Items, UnreadCount: list.UnreadCount}, list.Pagination)
}

func (s *Server) unreadCountHandler(w http.ResponseWriter, r *http.Request) {
	count, err := s.notifications.UnreadCount(r.Context(), currentUser(r).ID)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithData(w, http.StatusOK, "", map[string]int64{"unread_count": count})
}

func (s *Server) markReadHandler(w http.ResponseWriter, r *http.Request) {
	err := s.notifications.MarkRead(r.Context(), chi.URLParam(r, "id"), currentUser(r).ID)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithData(w, http.StatusOK, "Notification marked as read", nil)
}

func (s *Server) markAllReadHandler(w http.ResponseWriter, r *http.Request) {
	n, err := s.notifications.MarkAllRead(r.Context(), currentUser(r).ID)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithData(w, http.StatusOK, "All notifications marked as read", map[string]int64{"updated": n})
}

func (s *Server) deleteNotificationHandler(w http.ResponseWriter, r *http.Request) {
	err := s.notifications.Delete(r.Context(), chi.URLParam(r, "id"), currentUser(r).ID)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithData(w, http.StatusOK, "Notification deleted successfully", nil)
}
