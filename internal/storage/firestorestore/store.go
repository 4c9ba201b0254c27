// Package firestorestore is a storage.Store on Cloud Firestore.
//
// Collections:
//
//	users/{id}
//	userEmails/{normalizedEmail}        {userId}
//	conversations/{id}                  members array for array-contains queries
//	conversations/{id}/messages/{id}
//	conversationPairs/{sha256(pairKey)} {conversationId}
//
// conversationPairs is written in the same transaction as the conversation so
// two clients starting the same chat end up with one document.
package firestorestore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/compute/metadata"
	"cloud.google.com/go/firestore"
	"github.com/Vasu1712/scenyx-dms/internal/apperrors"
	"github.com/Vasu1712/scenyx-dms/internal/logging"
	"github.com/Vasu1712/scenyx-dms/internal/models"
	"github.com/Vasu1712/scenyx-dms/internal/storage"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	usersCollection         = "users"
	userEmailsCollection    = "userEmails"
	conversationsCollection = "conversations"
	messagesCollection      = "messages"
	pairsCollection         = "conversationPairs"
)

type memberInfoDoc struct {
	ID          string `firestore:"id"`
	Email       string `firestore:"email"`
	DisplayName string `firestore:"displayName"`
	PhotoURL    string `firestore:"photoURL"`
}

type lastMessageDoc struct {
	Text      string    `firestore:"text"`
	FromID    string    `firestore:"fromId"`
	CreatedAt time.Time `firestore:"createdAt"`
}

type conversationDoc struct {
	ID           string                   `firestore:"id"`
	PairKey      string                   `firestore:"pairKey"`
	Members      []string                 `firestore:"members"`
	MembersInfo  map[string]memberInfoDoc `firestore:"membersInfo"`
	LastMessage  lastMessageDoc           `firestore:"lastMessage"`
	MessageCount int64                    `firestore:"messageCount"`
	CreatedAt    time.Time                `firestore:"createdAt"`
	UpdatedAt    time.Time                `firestore:"updatedAt"`
}

type messageDoc struct {
	ID             string    `firestore:"id"`
	ConversationID string    `firestore:"conversationId"`
	FromID         string    `firestore:"fromId"`
	Text           string    `firestore:"text"`
	CreatedAt      time.Time `firestore:"createdAt"`
	Seq            int64     `firestore:"seq"`
}

type pairDoc struct {
	ConversationID string `firestore:"conversationId"`
}

func toConversationDoc(c *models.Conversation) conversationDoc {
	info := make(map[string]memberInfoDoc, len(c.MembersInfo))
	for id, m := range c.MembersInfo {
		info[id] = memberInfoDoc(m)
	}
	return conversationDoc{
		ID:          c.ID,
		PairKey:     c.PairKey,
		Members:     c.Members[:],
		MembersInfo: info,
		LastMessage: lastMessageDoc(c.LastMessage),
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

func (d conversationDoc) toModel() *models.Conversation {
	conv := &models.Conversation{
		ID:          d.ID,
		PairKey:     d.PairKey,
		MembersInfo: make(map[string]models.MemberInfo, len(d.MembersInfo)),
		LastMessage: models.LastMessage{
			Text:      d.LastMessage.Text,
			FromID:    d.LastMessage.FromID,
			CreatedAt: d.LastMessage.CreatedAt.UTC(),
		},
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
	}
	copy(conv.Members[:], d.Members)
	for id, m := range d.MembersInfo {
		conv.MembersInfo[id] = models.MemberInfo(m)
	}
	return conv
}

func (d messageDoc) toModel() *models.Message {
	return &models.Message{
		ID:             d.ID,
		ConversationID: d.ConversationID,
		FromID:         d.FromID,
		Text:           d.Text,
		CreatedAt:      d.CreatedAt.UTC(),
		Seq:            d.Seq,
	}
}

// Store implements storage.Store on a Firestore client.
type Store struct {
	client *firestore.Client
	clock  *storage.ServerClock
	log    *slog.Logger
}

// New connects to projectID. When projectID is empty it is read from the
// GCE metadata server.
func New(ctx context.Context, projectID string, clock *storage.ServerClock, log *slog.Logger) (*Store, error) {
	if projectID == "" {
		var err error
		projectID, err = metadata.ProjectIDWithContext(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve firestore project: %w", err)
		}
	}
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	if clock == nil {
		clock = storage.NewServerClock(nil)
	}
	return &Store{
		client: client,
		clock:  clock,
		log:    log.With(slog.String(logging.ComponentField, "firestore-store"), slog.String("projectID", projectID)),
	}, nil
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case apperrors.IsKnown(err):
		return err
	case isNotFound(err):
		return apperrors.ErrNotFound
	default:
		return apperrors.Transient(err)
	}
}

func (s *Store) conversations() *firestore.CollectionRef {
	return s.client.Collection(conversationsCollection)
}

func (s *Store) messages(conversationID string) *firestore.CollectionRef {
	return s.conversations().Doc(conversationID).Collection(messagesCollection)
}

// CreateConversation claims the pair document and writes the conversation in one
// transaction. A retried transaction observes the winner's pair document.
func (s *Store) CreateConversation(ctx context.Context, conv *models.Conversation) (*models.Conversation, bool, error) {
	pairKey := models.PairKey(conv.Members[0], conv.Members[1])
	pairRef := s.client.Collection(pairsCollection).Doc(pairDocID(pairKey))

	var (
		stored  *models.Conversation
		created bool
	)
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		stored, created = nil, false

		pairSnap, err := tx.Get(pairRef)
		switch {
		case err == nil:
			var pair pairDoc
			if err := pairSnap.DataTo(&pair); err != nil {
				return err
			}
			convSnap, err := tx.Get(s.conversations().Doc(pair.ConversationID))
			if err != nil {
				return err
			}
			var doc conversationDoc
			if err := convSnap.DataTo(&doc); err != nil {
				return err
			}
			stored = doc.toModel()
			return nil
		case !isNotFound(err):
			return err
		}

		now := s.clock.Now()
		fresh := conv.Clone()
		if fresh.ID == "" {
			fresh.ID = uuid.NewString()
		}
		fresh.PairKey = pairKey
		fresh.CreatedAt = now
		fresh.UpdatedAt = now
		fresh.LastMessage.CreatedAt = now

		if err := tx.Create(pairRef, pairDoc{ConversationID: fresh.ID}); err != nil {
			return err
		}
		if err := tx.Create(s.conversations().Doc(fresh.ID), toConversationDoc(fresh)); err != nil {
			return err
		}
		stored, created = fresh, true
		return nil
	})
	if err != nil {
		return nil, false, mapErr(err)
	}
	if created {
		s.log.Debug("created DM conversation", slog.String(logging.ConversationIDField, stored.ID))
	}
	return stored, created, nil
}

func (s *Store) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	snap, err := s.conversations().Doc(id).Get(ctx)
	if err != nil {
		return nil, mapErr(err)
	}
	var doc conversationDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, apperrors.Transient(err)
	}
	return doc.toModel(), nil
}

func (s *Store) ListConversations(ctx context.Context, userID string) ([]*models.Conversation, error) {
	iter := s.conversations().Where("members", "array-contains", userID).Documents(ctx)
	defer iter.Stop()

	var convs []*models.Conversation
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, mapErr(err)
		}
		var doc conversationDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, apperrors.Transient(err)
		}
		convs = append(convs, doc.toModel())
	}
	models.SortConversations(convs)
	return convs, nil
}

// AppendMessage writes the message and the preview in one transaction. Seq is
// the conversation's message counter.
//
// Instances sharing the database do not share a clock, so CreatedAt is also
// forced past the previous message's, read in the same transaction. Seq and
// CreatedAt then agree on the order.
func (s *Store) AppendMessage(ctx context.Context, msg *models.Message, preview string) (*models.Message, error) {
	convRef := s.conversations().Doc(msg.ConversationID)
	id := msg.ID
	if id == "" {
		id = uuid.Must(uuid.NewV7()).String()
	}

	var stored *models.Message
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(convRef)
		if err != nil {
			return err
		}
		var conv conversationDoc
		if err := snap.DataTo(&conv); err != nil {
			return err
		}

		doc := messageDoc{
			ID:             id,
			ConversationID: msg.ConversationID,
			FromID:         msg.FromID,
			Text:           msg.Text,
			CreatedAt:      nextMessageTime(s.clock.Now(), conv.LastMessage.CreatedAt),
			Seq:            conv.MessageCount + 1,
		}
		if err := tx.Create(convRef.Collection(messagesCollection).Doc(id), doc); err != nil {
			return err
		}
		err = tx.Update(convRef, []firestore.Update{
			{Path: "lastMessage", Value: lastMessageDoc{Text: preview, FromID: doc.FromID, CreatedAt: doc.CreatedAt}},
			{Path: "messageCount", Value: doc.Seq},
			{Path: "updatedAt", Value: doc.CreatedAt},
		})
		if err != nil {
			return err
		}
		stored = doc.toModel()
		return nil
	})
	if err != nil {
		return nil, mapErr(err)
	}
	return stored, nil
}

func (s *Store) ListMessages(ctx context.Context, conversationID string) ([]*models.Message, error) {
	if _, err := s.conversations().Doc(conversationID).Get(ctx); err != nil {
		return nil, mapErr(err)
	}
	iter := s.messages(conversationID).OrderBy("seq", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	var msgs []*models.Message
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, mapErr(err)
		}
		var doc messageDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, apperrors.Transient(err)
		}
		msgs = append(msgs, doc.toModel())
	}
	models.SortMessages(msgs)
	return msgs, nil
}

// pairDocID keeps arbitrary ids (which may contain "/") out of the document path.
func pairDocID(pairKey string) string {
	sum := sha256.Sum256([]byte(pairKey))
	return hex.EncodeToString(sum[:])
}

// nextMessageTime is now, or one microsecond past last when now is not after it.
// Firestore stores microseconds.
func nextMessageTime(now, last time.Time) time.Time {
	now = now.Truncate(time.Microsecond)
	if floor := last.Truncate(time.Microsecond).Add(time.Microsecond); now.Before(floor) {
		return floor
	}
	return now
}

func (s *Store) Close() error {
	return s.client.Close()
}

var _ storage.Store = (*Store)(nil)
