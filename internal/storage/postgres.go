package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Postgres はPostgreSQLのclient_storageテーブルを使うStore。
// テーブルは database.RunMigrations で作成する。
type Postgres struct {
	db *sql.DB
}

// NewPostgres はPostgresストアを生成する。
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// GetItem は値を取得する。
func (p *Postgres) GetItem(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := p.db.QueryRowContext(ctx,
		`SELECT value FROM client_storage WHERE key = $1`,
		key,
	).Scan(&value)

	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get item: %w", err)
	}
	if value == "" {
		return "", false, nil
	}
	return value, true, nil
}

// SetItem は値をUPSERTする。
func (p *Postgres) SetItem(ctx context.Context, key, value string) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO client_storage (key, value, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("failed to set item: %w", err)
	}
	return nil
}

// RemoveItem は値を削除する。
func (p *Postgres) RemoveItem(ctx context.Context, key string) error {
	_, err := p.db.ExecContext(ctx,
		`DELETE FROM client_storage WHERE key = $1`,
		key,
	)
	if err != nil {
		return fmt.Errorf("failed to remove item: %w", err)
	}
	return nil
}

// Ping はデータベースへの接続を確認する。
func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close はデータベース接続を閉じる。
func (p *Postgres) Close() error {
	return p.db.Close()
}

// compile-time interface check
var _ Store = (*Postgres)(nil)
