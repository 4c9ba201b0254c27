// Package message is the append-only message log of each conversation.
package message

import (
	"context"
	"log/slog"
	"strings"

	"github.com/Vasu1712/scenyx-dms/internal/access"
	"github.com/Vasu1712/scenyx-dms/internal/apperrors"
	"github.com/Vasu1712/scenyx-dms/internal/auth"
	"github.com/Vasu1712/scenyx-dms/internal/broker"
	"github.com/Vasu1712/scenyx-dms/internal/logging"
	"github.com/Vasu1712/scenyx-dms/internal/models"
	"github.com/Vasu1712/scenyx-dms/internal/storage"
)

// Backend is the part of storage.Store the message log needs.
type Backend interface {
	storage.ConversationStore
	storage.MessageStore
}

type Store struct {
	backend  Backend
	notifier broker.Notifier
	log      *slog.Logger
}

func NewStore(backend Backend, notifier broker.Notifier, log *slog.Logger) *Store {
	return &Store{
		backend:  backend,
		notifier: notifier,
		log:      log.With(slog.String(logging.ComponentField, "messages")),
	}
}

// Append adds text to the conversation as senderID. Text that is empty after
// trimming is ignored: nothing is written and (nil, nil) is returned.
func (s *Store) Append(ctx context.Context, conversationID, senderID, text string) (*models.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	caller, err := access.RequireSelf(ctx, senderID)
	if err != nil {
		return nil, err
	}
	conv, err := s.backend.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, apperrors.Transient(err)
	}
	if err := access.CanAppendMessage(caller, conv, senderID); err != nil {
		return nil, err
	}

	msg, err := s.backend.AppendMessage(ctx, &models.Message{
		ConversationID: conversationID,
		FromID:         senderID,
		Text:           text,
	}, models.Preview(text))
	if err != nil {
		return nil, apperrors.Transient(err)
	}

	s.log.Debug("message appended",
		slog.String(logging.ConversationIDField, conversationID),
		slog.String(logging.MessageIDField, msg.ID))
	topics := []string{
		broker.ConversationTopic(conversationID),
		broker.UserTopic(conv.Members[0]),
		broker.UserTopic(conv.Members[1]),
	}
	if err := broker.PublishAll(ctx, s.notifier, topics...); err != nil {
		s.log.Warn("failed to publish message", slog.String(logging.ErrorMsgField, err.Error()))
	}
	return msg, nil
}

// List returns the conversation's messages, oldest first.
func (s *Store) List(ctx context.Context, conversationID string) ([]*models.Message, error) {
	caller, err := auth.Require(ctx)
	if err != nil {
		return nil, err
	}
	conv, err := s.backend.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, apperrors.Transient(err)
	}
	if err := access.CanReadConversation(caller, conv); err != nil {
		return nil, err
	}
	msgs, err := s.backend.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, apperrors.Transient(err)
	}
	models.SortMessages(msgs)
	return msgs, nil
}

// Subscribe delivers the full ordered log now and after every append. The
// membership check runs on every delivery; a denial ends the subscription.
func (s *Store) Subscribe(
	ctx context.Context,
	conversationID string,
	onChange func([]*models.Message),
	onError func(error),
) (cancel func()) {
	return broker.Watch(ctx, s.notifier, broker.ConversationTopic(conversationID), func(ctx context.Context) ([]*models.Message, error) {
		return s.List(ctx, conversationID)
	}, onChange, onError)
}
