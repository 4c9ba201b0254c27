package models

import (
	"fmt"
	"sort"
	"time"
)

// PreviewLimit caps the text copied into a conversation's LastMessage.
const PreviewLimit = 200

// MemberInfo is the participant snapshot stored on a conversation at creation time.
// It is not kept in sync with later directory changes.
type MemberInfo struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`
	PhotoURL    string `json:"photoURL,omitempty"`
}

// LastMessage is the denormalized preview of the newest message. FromID is empty
// until the first message is sent.
type LastMessage struct {
	Text      string    `json:"text"`
	FromID    string    `json:"fromId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Conversation is a two-party DM thread.
type Conversation struct {
	ID          string                `json:"id"`
	PairKey     string                `json:"-"`
	Members     [2]string             `json:"members"` // Always 2 for DM
	MembersInfo map[string]MemberInfo `json:"membersInfo"`
	LastMessage LastMessage           `json:"lastMessage"`
	CreatedAt   time.Time             `json:"createdAt"`
	UpdatedAt   time.Time             `json:"updatedAt"`
}

// HasMember reports whether userID is one of the two participants.
func (c *Conversation) HasMember(userID string) bool {
	return userID != "" && (c.Members[0] == userID || c.Members[1] == userID)
}

// PeerOf returns the participant that is not selfID.
func (c *Conversation) PeerOf(selfID string) string {
	if c.Members[0] == selfID {
		return c.Members[1]
	}
	return c.Members[0]
}

// IsPair reports whether the member set is exactly {a, b}.
func (c *Conversation) IsPair(a, b string) bool {
	return a != b && c.HasMember(a) && c.HasMember(b)
}

// Clone returns a deep copy so stores never hand out shared maps.
func (c *Conversation) Clone() *Conversation {
	cp := *c
	cp.MembersInfo = make(map[string]MemberInfo, len(c.MembersInfo))
	for k, v := range c.MembersInfo {
		cp.MembersInfo[k] = v
	}
	return &cp
}

// Message is an immutable entry in a conversation's log. Seq is the
// store-assigned insertion order used to break CreatedAt ties.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	FromID         string    `json:"fromId"`
	Text           string    `json:"text"`
	CreatedAt      time.Time `json:"createdAt"`
	Seq            int64     `json:"-"`
}

// PairKey is the canonical key of an unordered member pair. The lower id is
// length-prefixed so no two pairs share a key, whatever characters ids contain.
func PairKey(a, b string) string {
	lo, hi := a, b
	if hi < lo {
		lo, hi = hi, lo
	}
	return fmt.Sprintf("%d:%s|%s", len(lo), lo, hi)
}

// Preview truncates text to PreviewLimit runes.
func Preview(text string) string {
	r := []rune(text)
	if len(r) <= PreviewLimit {
		return text
	}
	return string(r[:PreviewLimit])
}

// SortMessages orders messages by CreatedAt ascending, then by Seq.
func SortMessages(msgs []*Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		if !msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
		}
		return msgs[i].Seq < msgs[j].Seq
	})
}

// SortConversations orders conversations by UpdatedAt descending.
func SortConversations(convs []*Conversation) {
	sort.SliceStable(convs, func(i, j int) bool {
		return convs[i].UpdatedAt.After(convs[j].UpdatedAt)
	})
}
