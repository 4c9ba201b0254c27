// Package conversation keeps at most one conversation per pair of users and
// serves live per-user conversation lists.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Vasu1712/scenyx-dms/internal/access"
	"github.com/Vasu1712/scenyx-dms/internal/apperrors"
	"github.com/Vasu1712/scenyx-dms/internal/auth"
	"github.com/Vasu1712/scenyx-dms/internal/broker"
	"github.com/Vasu1712/scenyx-dms/internal/directory"
	"github.com/Vasu1712/scenyx-dms/internal/logging"
	"github.com/Vasu1712/scenyx-dms/internal/models"
	"github.com/Vasu1712/scenyx-dms/internal/storage"
)

type Registry struct {
	store    storage.ConversationStore
	dir      *directory.Directory
	notifier broker.Notifier
	log      *slog.Logger
}

func NewRegistry(store storage.ConversationStore, dir *directory.Directory, notifier broker.Notifier, log *slog.Logger) *Registry {
	return &Registry{
		store:    store,
		dir:      dir,
		notifier: notifier,
		log:      log.With(slog.String(logging.ComponentField, "registry")),
	}
}

// EnsureConversationWith returns the conversation between selfID and the user
// registered under otherEmail, creating it when the pair has none. Concurrent
// calls from either side resolve to the same conversation.
func (r *Registry) EnsureConversationWith(ctx context.Context, selfID, otherEmail string) (*models.Conversation, error) {
	caller, err := access.RequireSelf(ctx, selfID)
	if err != nil {
		return nil, err
	}

	other, found, err := r.dir.Lookup(ctx, otherEmail)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, apperrors.ErrNotFound
	}
	if other.ID == selfID {
		return nil, apperrors.ErrInvalidArgument
	}

	existing, err := r.store.ListConversations(ctx, selfID)
	if err != nil {
		return nil, apperrors.Transient(err)
	}
	for _, conv := range existing {
		if conv.IsPair(selfID, other.ID) {
			return conv, nil
		}
	}

	conv := &models.Conversation{
		Members: [2]string{selfID, other.ID},
		MembersInfo: map[string]models.MemberInfo{
			selfID:   r.selfInfo(ctx, caller),
			other.ID: other.Info(),
		},
	}
	if err := access.CanCreateConversation(caller, conv); err != nil {
		return nil, err
	}

	stored, created, err := r.store.CreateConversation(ctx, conv)
	if err != nil {
		return nil, apperrors.Transient(err)
	}
	if !stored.IsPair(selfID, other.ID) {
		r.log.Error("pair key resolved to another pair",
			slog.String(logging.ConversationIDField, stored.ID),
			slog.String(logging.UserIDField, selfID))
		return nil, fmt.Errorf("%w: conversation %s does not belong to this pair", apperrors.ErrConflict, stored.ID)
	}
	if created {
		r.log.Info("conversation created",
			slog.String(logging.ConversationIDField, stored.ID),
			slog.String(logging.UserIDField, selfID))
		r.publish(ctx, broker.UserTopic(stored.Members[0]), broker.UserTopic(stored.Members[1]))
	}
	return stored, nil
}

// selfInfo snapshots the caller's directory entry, falling back to the identity.
func (r *Registry) selfInfo(ctx context.Context, caller auth.Identity) models.MemberInfo {
	self, err := r.dir.Get(ctx, caller.ID)
	if err == nil {
		return self.Info()
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		r.log.Warn("failed to read caller entry",
			slog.String(logging.UserIDField, caller.ID),
			slog.String(logging.ErrorMsgField, err.Error()))
	}
	return models.MemberInfo{
		ID:          caller.ID,
		Email:       caller.Email,
		DisplayName: caller.DisplayName,
		PhotoURL:    caller.PhotoURL,
	}
}

// ListForUser returns selfID's conversations, most recently updated first.
func (r *Registry) ListForUser(ctx context.Context, selfID string) ([]*models.Conversation, error) {
	if _, err := access.RequireSelf(ctx, selfID); err != nil {
		return nil, err
	}
	convs, err := r.store.ListConversations(ctx, selfID)
	if err != nil {
		return nil, apperrors.Transient(err)
	}
	models.SortConversations(convs)
	return convs, nil
}

// Get returns a conversation the caller is a member of.
func (r *Registry) Get(ctx context.Context, conversationID string) (*models.Conversation, error) {
	caller, err := auth.Require(ctx)
	if err != nil {
		return nil, err
	}
	conv, err := r.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, apperrors.Transient(err)
	}
	if err := access.CanReadConversation(caller, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

// SubscribeForUser delivers selfID's conversation list now and after every
// change to one of them. Failures go to onError.
func (r *Registry) SubscribeForUser(
	ctx context.Context,
	selfID string,
	onChange func([]*models.Conversation),
	onError func(error),
) (cancel func()) {
	return broker.Watch(ctx, r.notifier, broker.UserTopic(selfID), func(ctx context.Context) ([]*models.Conversation, error) {
		return r.ListForUser(ctx, selfID)
	}, onChange, onError)
}

func (r *Registry) publish(ctx context.Context, topics ...string) {
	if err := broker.PublishAll(ctx, r.notifier, topics...); err != nil {
		r.log.Warn("failed to publish conversation change", slog.String(logging.ErrorMsgField, err.Error()))
	}
}
