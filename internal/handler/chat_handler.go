package handler

import (
	"encoding/json"
	"net/http"

	"chatapp/internal/domain"
)

// ChatReader exposes the read-only views of the chat state
type ChatReader interface {
	Users() []domain.User
	RecentMessages(n int) []domain.Message
	UserCount() int
}

// ChatHandler serves the query API
type ChatHandler struct {
	chat         ChatReader
	messageLimit int
}

// NewChatHandler creates a new chat handler returning at most messageLimit
// messages from the messages endpoint
func NewChatHandler(chat ChatReader, messageLimit int) *ChatHandler {
	return &ChatHandler{
		chat:         chat,
		messageLimit: messageLimit,
	}
}

// UsersResponse is the body of GET /api/users
type UsersResponse struct {
	Users []domain.User `json:"users"`
	Count int           `json:"count"`
}

// MessagesResponse is the body of GET /api/messages
type MessagesResponse struct {
	Messages []domain.Message `json:"messages"`
	Count    int              `json:"count"`
}

// Users lists connected users
func (h *ChatHandler) Users(w http.ResponseWriter, r *http.Request) {
	users := h.chat.Users()
	writeJSON(w, http.StatusOK, UsersResponse{Users: users, Count: len(users)})
}

// Messages returns the most recent messages of the default room
func (h *ChatHandler) Messages(w http.ResponseWriter, r *http.Request) {
	messages := h.chat.RecentMessages(h.messageLimit)
	writeJSON(w, http.StatusOK, MessagesResponse{Messages: messages, Count: len(messages)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
