package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/593496637/onchain-data-system/internal/model"
	"github.com/593496637/onchain-data-system/internal/storage"
)

// Store provides Postgres persistence for projected entities, one table per
// entity type, each keyed by the entity id.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Upsert inserts or overwrites an entity by id.
func (s *Store) Upsert(ctx context.Context, e model.Entity) error {
	switch record := e.(type) {
	case model.DataRecord:
		_, err := s.pool.Exec(ctx, `
			INSERT INTO data_records (
				id, sequence_number, sender, message, occurred_at, block_number, tx_hash, log_index, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
			ON CONFLICT (id)
			DO UPDATE SET
				sequence_number = EXCLUDED.sequence_number,
				sender = EXCLUDED.sender,
				message = EXCLUDED.message,
				occurred_at = EXCLUDED.occurred_at,
				block_number = EXCLUDED.block_number,
				tx_hash = EXCLUDED.tx_hash,
				log_index = EXCLUDED.log_index,
				updated_at = now()
		`,
			record.ID,
			int64(record.SequenceNumber),
			record.Sender,
			record.Message,
			int64(record.OccurredAt),
			int64(record.BlockNumber),
			record.TxHash,
			int64(record.LogIndex),
		)
		return err
	case model.TransferRecord:
		_, err := s.pool.Exec(ctx, `
			INSERT INTO transfer_records (
				id, transfer_id, sender, recipient, amount, message, occurred_at, block_number, tx_hash, log_index, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now(), now())
			ON CONFLICT (id)
			DO UPDATE SET
				transfer_id = EXCLUDED.transfer_id,
				sender = EXCLUDED.sender,
				recipient = EXCLUDED.recipient,
				amount = EXCLUDED.amount,
				message = EXCLUDED.message,
				occurred_at = EXCLUDED.occurred_at,
				block_number = EXCLUDED.block_number,
				tx_hash = EXCLUDED.tx_hash,
				log_index = EXCLUDED.log_index,
				updated_at = now()
		`,
			record.ID,
			int64(record.TransferID),
			record.Sender,
			record.Recipient,
			record.Amount,
			record.Message,
			int64(record.OccurredAt),
			int64(record.BlockNumber),
			record.TxHash,
			int64(record.LogIndex),
		)
		return err
	case model.SwapRecord:
		_, err := s.pool.Exec(ctx, `
			INSERT INTO swap_records (
				id, sender, recipient, message, amount_in, amount_out, occurred_at, block_number, tx_hash, log_index, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now(), now())
			ON CONFLICT (id)
			DO UPDATE SET
				sender = EXCLUDED.sender,
				recipient = EXCLUDED.recipient,
				message = EXCLUDED.message,
				amount_in = EXCLUDED.amount_in,
				amount_out = EXCLUDED.amount_out,
				occurred_at = EXCLUDED.occurred_at,
				block_number = EXCLUDED.block_number,
				tx_hash = EXCLUDED.tx_hash,
				log_index = EXCLUDED.log_index,
				updated_at = now()
		`,
			record.ID,
			record.Sender,
			record.Recipient,
			record.Message,
			record.AmountIn,
			record.AmountOut,
			int64(record.OccurredAt),
			int64(record.BlockNumber),
			record.TxHash,
			int64(record.LogIndex),
		)
		return err
	default:
		return fmt.Errorf("unhandled entity type %T", e)
	}
}

// Get returns storage.ErrNotFound for unknown ids.
func (s *Store) Get(ctx context.Context, entityType model.EntityType, id string) (model.Entity, error) {
	table, err := tableFor(entityType)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, columnsFor(entityType), table)
	row := s.pool.QueryRow(ctx, query, id)

	e, err := scanEntity(entityType, row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return e, nil
}

// Scan filters, orders and paginates one entity table.
func (s *Store) Scan(ctx context.Context, entityType model.EntityType, filter storage.Filter, opts storage.ScanOptions) ([]model.Entity, error) {
	if err := filter.Validate(entityType); err != nil {
		return nil, err
	}

	table, err := tableFor(entityType)
	if err != nil {
		return nil, err
	}

	var (
		where []string
		args  []interface{}
	)
	arg := func(value interface{}) string {
		args = append(args, value)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.SenderEquals != "" {
		where = append(where, fmt.Sprintf("lower(sender) = lower(%s)", arg(filter.SenderEquals)))
	}
	if filter.RecipientEquals != "" {
		where = append(where, fmt.Sprintf("lower(recipient) = lower(%s)", arg(filter.RecipientEquals)))
	}
	if filter.OccurredAfter != nil {
		where = append(where, fmt.Sprintf("occurred_at >= %s", arg(int64(*filter.OccurredAfter))))
	}
	if filter.OccurredBefore != nil {
		where = append(where, fmt.Sprintf("occurred_at <= %s", arg(int64(*filter.OccurredBefore))))
	}
	if filter.MessageContains != "" {
		where = append(where, fmt.Sprintf("message ILIKE '%%' || %s || '%%'", arg(filter.MessageContains)))
	}

	query := fmt.Sprintf(`SELECT %s FROM %s`, columnsFor(entityType), table)
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	dir := "DESC"
	if opts.Normalize() == storage.Asc {
		dir = "ASC"
	}
	query += fmt.Sprintf(" ORDER BY occurred_at %s, block_number ASC, log_index ASC, id ASC", dir)

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %s", arg(opts.Limit))
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %s", arg(opts.Offset))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entities := make([]model.Entity, 0)
	for rows.Next() {
		e, err := scanEntity(entityType, rows)
		if err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}
	return entities, rows.Err()
}

// Retract removes an entity. Removing an absent id is a no-op.
func (s *Store) Retract(ctx context.Context, entityType model.EntityType, id string) error {
	table, err := tableFor(entityType)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, table), id)
	return err
}

func tableFor(entityType model.EntityType) (string, error) {
	switch entityType {
	case model.TypeDataRecord:
		return "data_records", nil
	case model.TypeTransferRecord:
		return "transfer_records", nil
	case model.TypeSwapRecord:
		return "swap_records", nil
	default:
		return "", fmt.Errorf("unknown entity type: %s", entityType)
	}
}

func columnsFor(entityType model.EntityType) string {
	switch entityType {
	case model.TypeDataRecord:
		return "id, sequence_number, sender, message, occurred_at, block_number, tx_hash, log_index"
	case model.TypeTransferRecord:
		return "id, transfer_id, sender, recipient, amount, message, occurred_at, block_number, tx_hash, log_index"
	default:
		return "id, sender, recipient, message, amount_in, amount_out, occurred_at, block_number, tx_hash, log_index"
	}
}

func scanEntity(entityType model.EntityType, row pgx.Row) (model.Entity, error) {
	switch entityType {
	case model.TypeDataRecord:
		var (
			record                                       model.DataRecord
			sequenceNumber, occurredAt, blockNum, logIdx int64
		)
		if err := row.Scan(&record.ID, &sequenceNumber, &record.Sender, &record.Message, &occurredAt, &blockNum, &record.TxHash, &logIdx); err != nil {
			return nil, err
		}
		record.SequenceNumber = uint64(sequenceNumber)
		record.OccurredAt = uint64(occurredAt)
		record.BlockNumber = uint64(blockNum)
		record.LogIndex = uint64(logIdx)
		return record, nil
	case model.TypeTransferRecord:
		var (
			record                                   model.TransferRecord
			transferID, occurredAt, blockNum, logIdx int64
		)
		if err := row.Scan(&record.ID, &transferID, &record.Sender, &record.Recipient, &record.Amount, &record.Message, &occurredAt, &blockNum, &record.TxHash, &logIdx); err != nil {
			return nil, err
		}
		record.TransferID = uint64(transferID)
		record.OccurredAt = uint64(occurredAt)
		record.BlockNumber = uint64(blockNum)
		record.LogIndex = uint64(logIdx)
		return record, nil
	default:
		var (
			record                       model.SwapRecord
			occurredAt, blockNum, logIdx int64
		)
		if err := row.Scan(&record.ID, &record.Sender, &record.Recipient, &record.Message, &record.AmountIn, &record.AmountOut, &occurredAt, &blockNum, &record.TxHash, &logIdx); err != nil {
			return nil, err
		}
		record.OccurredAt = uint64(occurredAt)
		record.BlockNumber = uint64(blockNum)
		record.LogIndex = uint64(logIdx)
		return record, nil
	}
}

// Verify interface compliance at compile time.
var _ storage.EntityStore = (*Store)(nil)
