package ws

import (
	"fmt"

	"github.com/Vasu1712/scenyx-dms/internal/session"
)

const (
	frameSelect    = "select"
	frameStartChat = "start_chat"
	frameSend      = "send"
	frameDraft     = "draft"
	frameSignOut   = "sign_out"

	frameView  = "view"
	frameError = "error"
)

// ClientFrame is a command sent by the browser.
type ClientFrame struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversationId,omitempty"`
	Email          string `json:"email,omitempty"`
	Text           string `json:"text,omitempty"`
}

// ServerFrame carries a full view after every state change, or a protocol error.
type ServerFrame struct {
	Type  string        `json:"type"`
	View  *session.View `json:"view,omitempty"`
	Error string        `json:"error,omitempty"`
}

// Controller is the subset of *session.Controller the socket drives.
type Controller interface {
	Select(conversationID string)
	StartChat(email string)
	Send(text string)
	SetDraft(text string)
	SignOut()
}

// dispatch forwards a frame to the controller.
func dispatch(c Controller, f ClientFrame) error {
	switch f.Type {
	case frameSelect:
		c.Select(f.ConversationID)
	case frameStartChat:
		c.StartChat(f.Email)
	case frameSend:
		c.Send(f.Text)
	case frameDraft:
		c.SetDraft(f.Text)
	case frameSignOut:
		c.SignOut()
	default:
		return fmt.Errorf("unknown frame type %q", f.Type)
	}
	return nil
}
