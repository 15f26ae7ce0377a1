package event

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"gofalre.io/fuelstock/driver"
	"gofalre.io/fuelstock/models"
	"gofalre.io/fuelstock/models/enum"
)

var _ Repository = (*repository)(nil)

// ErrNotFound 訊息尚未被記錄
var ErrNotFound = errors.New("message not found")

type Repository interface {
	// Claim 記錄訊息；回傳 false 表示此訊息先前已被記錄過
	Claim(ctx context.Context, tx pgx.Tx, id string, messageType enum.WorkflowMessageType) (bool, error)
	GetByID(ctx context.Context, tx pgx.Tx, id string) (*models.ProcessedMessage, error)
	MarkAsProcessed(ctx context.Context, tx pgx.Tx, id string) error
}

type repository struct {
	conn   driver.PostgresPool
	logger *zap.Logger
}

func NewRepository(conn driver.PostgresPool, logger *zap.Logger) Repository {
	return &repository{
		conn:   conn,
		logger: logger,
	}
}

const (
	claimMessageSQL = `
		INSERT INTO processed_messages (id, type)
		VALUES ($1, $2)
		ON CONFLICT (id) DO NOTHING`

	getMessageSQL = `
		SELECT id, type, processed, created_at, COALESCE(processed_at, created_at)
		FROM processed_messages
		WHERE id = $1`

	markMessageProcessedSQL = `
		UPDATE processed_messages
		SET processed = TRUE, processed_at = now()
		WHERE id = $1`
)

type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *repository) db(tx pgx.Tx) querier {
	if tx != nil {
		return tx
	}
	return r.conn
}

func (r *repository) Claim(ctx context.Context, tx pgx.Tx, id string, messageType enum.WorkflowMessageType) (bool, error) {
	tag, err := r.db(tx).Exec(ctx, claimMessageSQL, id, string(messageType))
	if err != nil {
		r.logger.Error("failed to claim message", zap.String("message_id", id), zap.Error(err))
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *repository) GetByID(ctx context.Context, tx pgx.Tx, id string) (*models.ProcessedMessage, error) {
	var m models.ProcessedMessage
	err := r.db(tx).QueryRow(ctx, getMessageSQL, id).Scan(
		&m.ID,
		&m.Type,
		&m.Processed,
		&m.CreatedAt,
		&m.ProcessedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *repository) MarkAsProcessed(ctx context.Context, tx pgx.Tx, id string) error {
	_, err := r.db(tx).Exec(ctx, markMessageProcessedSQL, id)
	return err
}
