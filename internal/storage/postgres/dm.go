package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Vasu1712/scenyx-dms/internal/apperrors"
	"github.com/Vasu1712/scenyx-dms/internal/logging"
	"github.com/Vasu1712/scenyx-dms/internal/models"
	"github.com/Vasu1712/scenyx-dms/internal/storage"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const (
	dbDriver           = "postgres"
	uniqueViolation    = "23505"
	conversationFields = `id, pair_key, participant1_id, participant2_id, members_info,
		last_message_text, last_message_from, last_message_at, created_at, updated_at`
	messageFields = `seq, id, dm_conversation_id, sender_id, content, created_at`
)

// PostgresDMStore implements storage.Store using PostgreSQL.
type PostgresDMStore struct {
	db  *sqlx.DB
	log *slog.Logger
}

// NewPostgresDMStore connects to dataSourceName and applies the schema.
func NewPostgresDMStore(ctx context.Context, dataSourceName string, log *slog.Logger) (*PostgresDMStore, error) {
	db, err := sqlx.ConnectContext(ctx, dbDriver, dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database for DMs: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	s := &PostgresDMStore{db: db, log: log.With(slog.String(logging.ComponentField, "postgres-store"))}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	s.log.Info("connected to PostgreSQL database for DMs")
	return s, nil
}

func (s *PostgresDMStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply DM schema: %w", err)
	}
	return nil
}

// membersInfo is stored as JSONB.
type membersInfo map[string]models.MemberInfo

func (m membersInfo) Value() (driver.Value, error) {
	return json.Marshal(m)
}

func (m *membersInfo) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	case nil:
		*m = membersInfo{}
		return nil
	default:
		return fmt.Errorf("unsupported members_info type %T", src)
	}
	return json.Unmarshal(raw, m)
}

type conversationRow struct {
	ID              string      `db:"id"`
	PairKey         string      `db:"pair_key"`
	Participant1ID  string      `db:"participant1_id"`
	Participant2ID  string      `db:"participant2_id"`
	MembersInfo     membersInfo `db:"members_info"`
	LastMessageText string      `db:"last_message_text"`
	LastMessageFrom string      `db:"last_message_from"`
	LastMessageAt   time.Time   `db:"last_message_at"`
	CreatedAt       time.Time   `db:"created_at"`
	UpdatedAt       time.Time   `db:"updated_at"`
}

func (r conversationRow) toModel() *models.Conversation {
	return &models.Conversation{
		ID:          r.ID,
		PairKey:     r.PairKey,
		Members:     [2]string{r.Participant1ID, r.Participant2ID},
		MembersInfo: r.MembersInfo,
		LastMessage: models.LastMessage{
			Text:      r.LastMessageText,
			FromID:    r.LastMessageFrom,
			CreatedAt: r.LastMessageAt.UTC(),
		},
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

type messageRow struct {
	Seq              int64     `db:"seq"`
	ID               string    `db:"id"`
	DMConversationID string    `db:"dm_conversation_id"`
	SenderID         string    `db:"sender_id"`
	Content          string    `db:"content"`
	CreatedAt        time.Time `db:"created_at"`
}

func (r messageRow) toModel() *models.Message {
	return &models.Message{
		ID:             r.ID,
		ConversationID: r.DMConversationID,
		FromID:         r.SenderID,
		Text:           r.Content,
		CreatedAt:      r.CreatedAt.UTC(),
		Seq:            r.Seq,
	}
}

// CreateConversation inserts the conversation unless its pair key already exists,
// in which case the existing row is returned.
func (s *PostgresDMStore) CreateConversation(ctx context.Context, conv *models.Conversation) (*models.Conversation, bool, error) {
	pairKey := models.PairKey(conv.Members[0], conv.Members[1])
	id := conv.ID
	if id == "" {
		id = uuid.NewString()
	}

	var row conversationRow
	insertQuery := `
		INSERT INTO dm_conversations (id, pair_key, participant1_id, participant2_id, members_info)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (pair_key) DO NOTHING
		RETURNING ` + conversationFields
	err := s.db.GetContext(ctx, &row, insertQuery, id, pairKey, conv.Members[0], conv.Members[1], membersInfo(conv.MembersInfo))
	if err == nil {
		s.log.Debug("created DM conversation", slog.String(logging.ConversationIDField, row.ID))
		return row.toModel(), true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, apperrors.Transient(err)
	}

	selectQuery := `SELECT ` + conversationFields + ` FROM dm_conversations WHERE pair_key = $1`
	if err := s.db.GetContext(ctx, &row, selectQuery, pairKey); err != nil {
		return nil, false, apperrors.Transient(err)
	}
	return row.toModel(), false, nil
}

func (s *PostgresDMStore) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	var row conversationRow
	err := s.db.GetContext(ctx, &row, `SELECT `+conversationFields+` FROM dm_conversations WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, apperrors.Transient(err)
	}
	return row.toModel(), nil
}

// ListConversations lists all conversations a user is a part of.
func (s *PostgresDMStore) ListConversations(ctx context.Context, userID string) ([]*models.Conversation, error) {
	var rows []conversationRow
	query := `
		SELECT ` + conversationFields + `
		FROM dm_conversations
		WHERE participant1_id = $1 OR participant2_id = $1
		ORDER BY updated_at DESC
	`
	if err := s.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, apperrors.Transient(err)
	}
	convs := make([]*models.Conversation, 0, len(rows))
	for _, row := range rows {
		convs = append(convs, row.toModel())
	}
	return convs, nil
}

// AppendMessage inserts the message and updates the conversation preview in one transaction.
func (s *PostgresDMStore) AppendMessage(ctx context.Context, msg *models.Message, preview string) (*models.Message, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, apperrors.Transient(err)
	}
	defer func() { _ = tx.Rollback() }()

	var convID string
	err = tx.GetContext(ctx, &convID, `SELECT id FROM dm_conversations WHERE id = $1 FOR UPDATE`, msg.ConversationID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, apperrors.Transient(err)
	}

	id := msg.ID
	if id == "" {
		id = uuid.Must(uuid.NewV7()).String()
	}
	var row messageRow
	insertQuery := `
		INSERT INTO dm_messages (id, dm_conversation_id, sender_id, content)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + messageFields
	if err := tx.GetContext(ctx, &row, insertQuery, id, convID, msg.FromID, msg.Text); err != nil {
		return nil, apperrors.Transient(err)
	}

	updateConvQuery := `
		UPDATE dm_conversations
		SET last_message_text = $2, last_message_from = $3, last_message_at = $4, updated_at = $4
		WHERE id = $1`
	if _, err := tx.ExecContext(ctx, updateConvQuery, convID, preview, row.SenderID, row.CreatedAt); err != nil {
		return nil, apperrors.Transient(err)
	}
	if err := tx.Commit(); err != nil {
		return nil, apperrors.Transient(err)
	}
	return row.toModel(), nil
}

// ListMessages retrieves all messages for a given conversation ID.
func (s *PostgresDMStore) ListMessages(ctx context.Context, conversationID string) ([]*models.Message, error) {
	if _, err := s.GetConversation(ctx, conversationID); err != nil {
		return nil, err
	}
	var rows []messageRow
	query := `
		SELECT ` + messageFields + `
		FROM dm_messages
		WHERE dm_conversation_id = $1
		ORDER BY created_at ASC, seq ASC
	`
	if err := s.db.SelectContext(ctx, &rows, query, conversationID); err != nil {
		return nil, apperrors.Transient(err)
	}
	msgs := make([]*models.Message, 0, len(rows))
	for _, row := range rows {
		msgs = append(msgs, row.toModel())
	}
	return msgs, nil
}

// Close closes the database connection.
func (s *PostgresDMStore) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

var _ storage.Store = (*PostgresDMStore)(nil)
