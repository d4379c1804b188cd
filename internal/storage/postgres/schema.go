package postgres

import "context"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS data_records (
	id              TEXT PRIMARY KEY,
	sequence_number BIGINT NOT NULL,
	sender          TEXT NOT NULL,
	message         TEXT NOT NULL,
	occurred_at     BIGINT NOT NULL,
	block_number    BIGINT NOT NULL,
	tx_hash         TEXT NOT NULL,
	log_index       BIGINT NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_data_records_sender ON data_records (lower(sender));
CREATE INDEX IF NOT EXISTS idx_data_records_occurred_at ON data_records (occurred_at DESC);

CREATE TABLE IF NOT EXISTS transfer_records (
	id           TEXT PRIMARY KEY,
	transfer_id  BIGINT NOT NULL,
	sender       TEXT NOT NULL,
	recipient    TEXT NOT NULL,
	amount       TEXT NOT NULL,
	message      TEXT NOT NULL,
	occurred_at  BIGINT NOT NULL,
	block_number BIGINT NOT NULL,
	tx_hash      TEXT NOT NULL,
	log_index    BIGINT NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_transfer_records_sender ON transfer_records (lower(sender));
CREATE INDEX IF NOT EXISTS idx_transfer_records_recipient ON transfer_records (lower(recipient));
CREATE INDEX IF NOT EXISTS idx_transfer_records_occurred_at ON transfer_records (occurred_at DESC);

CREATE TABLE IF NOT EXISTS swap_records (
	id           TEXT PRIMARY KEY,
	sender       TEXT NOT NULL,
	recipient    TEXT NOT NULL,
	message      TEXT NOT NULL,
	amount_in    TEXT NOT NULL,
	amount_out   TEXT NOT NULL,
	occurred_at  BIGINT NOT NULL,
	block_number BIGINT NOT NULL,
	tx_hash      TEXT NOT NULL,
	log_index    BIGINT NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_swap_records_sender ON swap_records (lower(sender));
CREATE INDEX IF NOT EXISTS idx_swap_records_occurred_at ON swap_records (occurred_at DESC);
`

// EnsureSchema creates the entity tables and indexes if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schemaSQL)
	return err
}
