// Package access holds the read/write rules for directory entries,
// conversations and messages. Every rule takes the verified caller identity.
package access

import (
	"context"

	"github.com/Vasu1712/scenyx-dms/internal/apperrors"
	"github.com/Vasu1712/scenyx-dms/internal/auth"
	"github.com/Vasu1712/scenyx-dms/internal/models"
)

// RequireSelf returns the caller when it is acting as selfID.
func RequireSelf(ctx context.Context, selfID string) (auth.Identity, error) {
	caller, err := auth.Require(ctx)
	if err != nil {
		return auth.Identity{}, err
	}
	if selfID == "" || caller.ID != selfID {
		return auth.Identity{}, apperrors.Denied("caller %s cannot act as %q", caller.ID, selfID)
	}
	return caller, nil
}

// CanReadConversation allows members only.
func CanReadConversation(caller auth.Identity, conv *models.Conversation) error {
	if !conv.HasMember(caller.ID) {
		return apperrors.Denied("user %s is not a member of conversation %s", caller.ID, conv.ID)
	}
	return nil
}

// CanAppendMessage allows a member to append as itself.
func CanAppendMessage(caller auth.Identity, conv *models.Conversation, senderID string) error {
	if senderID != caller.ID {
		return apperrors.Denied("user %s cannot send as %q", caller.ID, senderID)
	}
	return CanReadConversation(caller, conv)
}

// CanCreateConversation requires the caller to be one of two distinct members.
func CanCreateConversation(caller auth.Identity, conv *models.Conversation) error {
	if conv.Members[0] == conv.Members[1] {
		return apperrors.ErrInvalidArgument
	}
	return CanReadConversation(caller, conv)
}

// CanWriteUser lets a user write only its own directory entry.
func CanWriteUser(caller auth.Identity, user *models.UserRecord) error {
	if user.ID != caller.ID {
		return apperrors.Denied("user %s cannot write user %s", caller.ID, user.ID)
	}
	return nil
}
