package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/chatman/internal/model"
)

// PostgresMessageRepo はPostgreSQLを使用したメッセージリポジトリ。
type PostgresMessageRepo struct {
	db *sql.DB
}

// NewPostgresMessageRepo はPostgresMessageRepoを生成する。
func NewPostgresMessageRepo(db *sql.DB) *PostgresMessageRepo {
	return &PostgresMessageRepo{db: db}
}

// Create はメッセージを作成する。
func (r *PostgresMessageRepo) Create(ctx context.Context, message *model.Message) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO messages (id, email, text, created_at)
		 VALUES ($1, $2, $3, $4)`,
		message.ID, message.Email, message.Text, message.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

// ListAsc は全メッセージを作成時刻昇順で返す。
func (r *PostgresMessageRepo) ListAsc(ctx context.Context) ([]model.Message, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, email, text, created_at
		 FROM messages
		 ORDER BY created_at ASC, id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

// ListLatest は直近limit件のメッセージを作成時刻昇順で返す。
// 保存件数がlimitに満たない場合は全件を返す。
// 降順limit付きで末尾を切り出し、サブクエリで昇順に並べ直す。
func (r *PostgresMessageRepo) ListLatest(ctx context.Context, limit int) ([]model.Message, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, email, text, created_at FROM (
		   SELECT id, email, text, created_at
		   FROM messages
		   ORDER BY created_at DESC, id DESC
		   LIMIT $1
		 ) latest
		 ORDER BY created_at ASC, id ASC`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list latest messages: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

func scanMessages(rows *sql.Rows) ([]model.Message, error) {
	messages := []model.Message{}
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.Email, &m.Text, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}

	return messages, nil
}

// compile-time interface check
var _ MessageRepository = (*PostgresMessageRepo)(nil)
