package postgres

// schema is applied by Migrate. Statements are idempotent.
const schema = `
CREATE TABLE IF NOT EXISTS dm_users (
	id               TEXT PRIMARY KEY,
	email            TEXT NOT NULL,
	normalized_email TEXT NOT NULL,
	display_name     TEXT NOT NULL DEFAULT '',
	photo_url        TEXT NOT NULL DEFAULT '',
	created_at       TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp()
);

CREATE UNIQUE INDEX IF NOT EXISTS dm_users_normalized_email_idx
	ON dm_users (normalized_email) WHERE normalized_email <> '';

CREATE TABLE IF NOT EXISTS dm_conversations (
	id                TEXT PRIMARY KEY,
	pair_key          TEXT NOT NULL UNIQUE,
	participant1_id   TEXT NOT NULL,
	participant2_id   TEXT NOT NULL,
	members_info      JSONB NOT NULL,
	last_message_text TEXT NOT NULL DEFAULT '',
	last_message_from TEXT NOT NULL DEFAULT '',
	last_message_at   TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp(),
	created_at        TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp()
);

CREATE INDEX IF NOT EXISTS dm_conversations_participant1_idx ON dm_conversations (participant1_id, updated_at DESC);
CREATE INDEX IF NOT EXISTS dm_conversations_participant2_idx ON dm_conversations (participant2_id, updated_at DESC);

CREATE TABLE IF NOT EXISTS dm_messages (
	seq                BIGSERIAL PRIMARY KEY,
	id                 TEXT NOT NULL UNIQUE,
	dm_conversation_id TEXT NOT NULL REFERENCES dm_conversations (id) ON DELETE CASCADE,
	sender_id          TEXT NOT NULL,
	content            TEXT NOT NULL,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp()
);

CREATE INDEX IF NOT EXISTS dm_messages_conversation_idx ON dm_messages (dm_conversation_id, created_at, seq);
`
