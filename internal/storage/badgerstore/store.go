// Package badgerstore is an embedded storage.Store on top of BadgerDB.
//
// Keys:
//
//	user:{id}                             -> UserRecord (JSON)
//	email:{normalizedEmail}               -> user id
//	conv:{id}                             -> Conversation (JSON)
//	pair:{pairKey}                        -> conversation id
//	member:{len}:{userID}:{conversationID}      -> empty
//	msg:{len}:{conversationID}:{nanos}:{seq}    -> Message (JSON)
//
// Scanned prefixes carry the byte length of their id, so the prefix of one id
// never matches the keys of a longer id that starts with it. Message keys
// zero-pad the timestamp and the sequence so a prefix scan returns the log in
// order.
package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Vasu1712/scenyx-dms/internal/apperrors"
	"github.com/Vasu1712/scenyx-dms/internal/logging"
	"github.com/Vasu1712/scenyx-dms/internal/models"
	"github.com/Vasu1712/scenyx-dms/internal/storage"
	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

const (
	maxTxnRetries = 16
	seqBandwidth  = 100
)

var seqKey = []byte("seq:messages")

// Store implements storage.Store on a BadgerDB instance it owns.
type Store struct {
	db    *badger.DB
	seq   *badger.Sequence
	clock *storage.ServerClock
	log   *slog.Logger
}

// Open opens (or creates) the database at path. An empty path runs in memory.
func Open(path string, clock *storage.ServerClock, log *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(path).WithLoggingLevel(badger.WARNING)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger at %q: %w", path, err)
	}
	return New(db, clock, log)
}

// New wraps an open database. Close releases the database too.
func New(db *badger.DB, clock *storage.ServerClock, log *slog.Logger) (*Store, error) {
	seq, err := db.GetSequence(seqKey, seqBandwidth)
	if err != nil {
		return nil, fmt.Errorf("failed to lease message sequence: %w", err)
	}
	if clock == nil {
		clock = storage.NewServerClock(nil)
	}
	return &Store{
		db:    db,
		seq:   seq,
		clock: clock,
		log:   log.With(slog.String(logging.ComponentField, "badger-store")),
	}, nil
}

func userKey(id string) []byte          { return []byte("user:" + id) }
func emailKey(norm string) []byte       { return []byte("email:" + norm) }
func convKey(id string) []byte          { return []byte("conv:" + id) }
func pairKeyKey(pair string) []byte     { return []byte("pair:" + pair) }
func memberPrefix(userID string) []byte { return scanPrefix("member", userID) }
func msgPrefix(convID string) []byte    { return scanPrefix("msg", convID) }

// scanPrefix is "{kind}:{len(id)}:{id}:".
func scanPrefix(kind, id string) []byte {
	return fmt.Appendf(nil, "%s:%d:%s:", kind, len(id), id)
}

func memberKey(userID, convID string) []byte {
	return append(memberPrefix(userID), convID...)
}

func msgKey(msg *models.Message) []byte {
	return fmt.Appendf(msgPrefix(msg.ConversationID), "%019d:%020d", msg.CreatedAt.UnixNano(), msg.Seq)
}

// update runs fn in a read-write transaction, retrying on optimistic conflicts.
func (s *Store) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < maxTxnRetries; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return apperrors.Transient(ctxErr)
		}
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			break
		}
		s.log.Debug("retrying badger transaction", slog.Int("attempt", attempt+1))
	}
	return s.mapErr(err)
}

func (s *Store) view(fn func(txn *badger.Txn) error) error {
	return s.mapErr(s.db.View(fn))
}

func (s *Store) mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, badger.ErrKeyNotFound):
		return apperrors.ErrNotFound
	default:
		return apperrors.Transient(err)
	}
}

func getJSON(txn *badger.Txn, key []byte, v any) error {
	item, err := txn.Get(key)
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

func setJSON(txn *badger.Txn, key []byte, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set(key, b)
}

func getString(txn *badger.Txn, key []byte) (string, error) {
	item, err := txn.Get(key)
	if err != nil {
		return "", err
	}
	b, err := item.ValueCopy(nil)
	return string(b), err
}

// conversationRecord keeps the pair key, which models.Conversation hides from JSON.
type conversationRecord struct {
	models.Conversation
	PairKey string `json:"pairKey"`
}

func getConversation(txn *badger.Txn, id string) (*models.Conversation, error) {
	var rec conversationRecord
	if err := getJSON(txn, convKey(id), &rec); err != nil {
		return nil, err
	}
	conv := rec.Conversation
	conv.PairKey = rec.PairKey
	return &conv, nil
}

func putConversation(txn *badger.Txn, conv *models.Conversation) error {
	return setJSON(txn, convKey(conv.ID), conversationRecord{Conversation: *conv, PairKey: conv.PairKey})
}

// messageRecord keeps the sequence, which models.Message hides from JSON.
type messageRecord struct {
	models.Message
	Seq int64 `json:"seq"`
}

func (s *Store) CreateConversation(ctx context.Context, conv *models.Conversation) (*models.Conversation, bool, error) {
	pairKey := models.PairKey(conv.Members[0], conv.Members[1])
	var (
		stored  *models.Conversation
		created bool
	)
	err := s.update(ctx, func(txn *badger.Txn) error {
		existingID, err := getString(txn, pairKeyKey(pairKey))
		if err == nil {
			stored, err = getConversation(txn, existingID)
			created = false
			return err
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
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

		if err := putConversation(txn, fresh); err != nil {
			return err
		}
		if err := txn.Set(pairKeyKey(pairKey), []byte(fresh.ID)); err != nil {
			return err
		}
		for _, member := range fresh.Members {
			if err := txn.Set(memberKey(member, fresh.ID), nil); err != nil {
				return err
			}
		}
		stored, created = fresh, true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if created {
		s.log.Debug("created DM conversation", slog.String(logging.ConversationIDField, stored.ID))
	}
	return stored, created, nil
}

func (s *Store) GetConversation(_ context.Context, id string) (*models.Conversation, error) {
	var conv *models.Conversation
	err := s.view(func(txn *badger.Txn) error {
		var err error
		conv, err = getConversation(txn, id)
		return err
	})
	return conv, err
}

func (s *Store) ListConversations(_ context.Context, userID string) ([]*models.Conversation, error) {
	var convs []*models.Conversation
	err := s.view(func(txn *badger.Txn) error {
		prefix := memberPrefix(userID)
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		var ids []string
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			ids = append(ids, string(it.Item().Key()[len(prefix):]))
		}
		for _, id := range ids {
			conv, err := getConversation(txn, id)
			if err != nil {
				return err
			}
			convs = append(convs, conv)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	models.SortConversations(convs)
	return convs, nil
}

func (s *Store) AppendMessage(ctx context.Context, msg *models.Message, preview string) (*models.Message, error) {
	seq, err := s.seq.Next()
	if err != nil {
		return nil, apperrors.Transient(err)
	}
	id := msg.ID
	if id == "" {
		id = uuid.Must(uuid.NewV7()).String()
	}

	var stored models.Message
	err = s.update(ctx, func(txn *badger.Txn) error {
		conv, err := getConversation(txn, msg.ConversationID)
		if err != nil {
			return err
		}
		stored = *msg
		stored.ID = id
		stored.Seq = int64(seq)
		stored.CreatedAt = s.clock.Now()

		if err := setJSON(txn, msgKey(&stored), messageRecord{Message: stored, Seq: stored.Seq}); err != nil {
			return err
		}
		conv.LastMessage = models.LastMessage{Text: preview, FromID: stored.FromID, CreatedAt: stored.CreatedAt}
		conv.UpdatedAt = stored.CreatedAt
		return putConversation(txn, conv)
	})
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

func (s *Store) ListMessages(_ context.Context, conversationID string) ([]*models.Message, error) {
	var records []messageRecord
	err := s.view(func(txn *badger.Txn) error {
		if _, err := txn.Get(convKey(conversationID)); err != nil {
			return err
		}
		prefix := msgPrefix(conversationID)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var rec messageRecord
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				return err
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return lo.Map(records, func(rec messageRecord, _ int) *models.Message {
		msg := rec.Message
		msg.Seq = rec.Seq
		return &msg
	}), nil
}

// Close releases the sequence lease and closes the database.
func (s *Store) Close() error {
	return errors.Join(s.seq.Release(), s.db.Close())
}

var _ storage.Store = (*Store)(nil)
