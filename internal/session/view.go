package session

import (
	"time"

	"github.com/Vasu1712/scenyx-dms/internal/models"
	"github.com/samber/lo"
)

const (
	unknownPeerName = "Unknown"
	emptyPreview    = "No messages"
)

// View is everything a client needs to draw the messaging screen.
type View struct {
	State         string            `json:"state"`
	Self          *Peer             `json:"self,omitempty"`
	Conversations []ConversationRow `json:"conversations"`
	SelectedID    string            `json:"selectedId,omitempty"`
	Peer          *Peer             `json:"peer,omitempty"`
	Messages      []MessageRow      `json:"messages"`
	Draft         string            `json:"draft"`
	BusyNew       bool              `json:"busyNew"`
	BusySend      bool              `json:"busySend"`
	Err           string            `json:"error,omitempty"`
}

type Peer struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

type ConversationRow struct {
	ID         string    `json:"id"`
	PeerID     string    `json:"peerId"`
	PeerName   string    `json:"peerName"`
	PeerAvatar string    `json:"peerAvatar,omitempty"`
	Preview    string    `json:"preview"`
	Active     bool      `json:"active"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type MessageRow struct {
	ID        string    `json:"id"`
	FromID    string    `json:"fromId"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
	Mine      bool      `json:"mine"`
}

// Renderer receives a fresh View after every state change, on the controller
// goroutine.
type Renderer interface {
	Render(View)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(View)

func (f RendererFunc) Render(v View) { f(v) }

func peerOf(conv *models.Conversation, selfID string) Peer {
	peerID := conv.PeerOf(selfID)
	info := conv.MembersInfo[peerID]
	return Peer{
		ID:        peerID,
		Name:      lo.CoalesceOrEmpty(info.DisplayName, info.Email, unknownPeerName),
		Email:     info.Email,
		AvatarURL: info.PhotoURL,
	}
}

func conversationRows(convs []*models.Conversation, selfID, selectedID string) []ConversationRow {
	return lo.Map(convs, func(conv *models.Conversation, _ int) ConversationRow {
		peer := peerOf(conv, selfID)
		return ConversationRow{
			ID:         conv.ID,
			PeerID:     peer.ID,
			PeerName:   peer.Name,
			PeerAvatar: peer.AvatarURL,
			Preview:    lo.CoalesceOrEmpty(conv.LastMessage.Text, emptyPreview),
			Active:     conv.ID == selectedID,
			UpdatedAt:  conv.UpdatedAt,
		}
	})
}

func messageRows(msgs []*models.Message, selfID string) []MessageRow {
	return lo.Map(msgs, func(msg *models.Message, _ int) MessageRow {
		return MessageRow{
			ID:        msg.ID,
			FromID:    msg.FromID,
			Text:      msg.Text,
			CreatedAt: msg.CreatedAt,
			Mine:      msg.FromID == selfID,
		}
	})
}
