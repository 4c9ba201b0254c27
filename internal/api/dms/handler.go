package dms

import (
	"context"
	"net/http"

	"github.com/Vasu1712/scenyx-dms/internal/api/httpio"
	"github.com/Vasu1712/scenyx-dms/internal/auth"
	"github.com/Vasu1712/scenyx-dms/internal/models"
	"github.com/gorilla/mux"
)

type Registry interface {
	EnsureConversationWith(ctx context.Context, selfID, otherEmail string) (*models.Conversation, error)
	ListForUser(ctx context.Context, selfID string) ([]*models.Conversation, error)
}

type Messages interface {
	Append(ctx context.Context, conversationID, senderID, text string) (*models.Message, error)
	List(ctx context.Context, conversationID string) ([]*models.Message, error)
}

type DMHandler struct {
	Registry Registry
	Messages Messages
}

type startRequest struct {
	Email string `json:"email" validate:"required"`
}

type sendRequest struct {
	Text string `json:"text"`
}

// StartOrGetConversation returns the caller's conversation with the user
// registered under the requested email, creating it if needed.
func (h *DMHandler) StartOrGetConversation(w http.ResponseWriter, r *http.Request) {
	id, err := auth.Require(r.Context())
	if err != nil {
		httpio.WriteError(w, r, err)
		return
	}
	var req startRequest
	if err := httpio.Decode(w, r, &req); err != nil {
		httpio.WriteError(w, r, err)
		return
	}
	conv, err := h.Registry.EnsureConversationWith(r.Context(), id.ID, req.Email)
	if err != nil {
		httpio.WriteError(w, r, err)
		return
	}
	httpio.WriteJSON(w, http.StatusOK, conv)
}

func (h *DMHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	id, err := auth.Require(r.Context())
	if err != nil {
		httpio.WriteError(w, r, err)
		return
	}
	convs, err := h.Registry.ListForUser(r.Context(), id.ID)
	if err != nil {
		httpio.WriteError(w, r, err)
		return
	}
	if convs == nil {
		convs = []*models.Conversation{}
	}
	httpio.WriteJSON(w, http.StatusOK, convs)
}

func (h *DMHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.Messages.List(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		httpio.WriteError(w, r, err)
		return
	}
	if msgs == nil {
		msgs = []*models.Message{}
	}
	httpio.WriteJSON(w, http.StatusOK, msgs)
}

// SendMessage appends as the caller. Blank text is accepted and ignored (204).
func (h *DMHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	id, err := auth.Require(r.Context())
	if err != nil {
		httpio.WriteError(w, r, err)
		return
	}
	var req sendRequest
	if err := httpio.Decode(w, r, &req); err != nil {
		httpio.WriteError(w, r, err)
		return
	}
	msg, err := h.Messages.Append(r.Context(), mux.Vars(r)["id"], id.ID, req.Text)
	if err != nil {
		httpio.WriteError(w, r, err)
		return
	}
	if msg == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	httpio.WriteJSON(w, http.StatusCreated, msg)
}
