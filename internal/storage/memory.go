package storage

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Memory はプロセス内メモリを使うStore。開発・テスト用。
// プロセス再起動で内容は失われる。
type Memory struct {
	c   *gocache.Cache
	ttl time.Duration
}

// NewMemory はMemoryを生成する。ttlが0以下の場合はエントリを失効させない。
func NewMemory(ttl time.Duration) *Memory {
	exp := gocache.NoExpiration
	if ttl > 0 {
		exp = ttl
	}
	return &Memory{
		c:   gocache.New(exp, time.Minute),
		ttl: exp,
	}
}

// GetItem は値を取得する。
func (m *Memory) GetItem(ctx context.Context, key string) (string, bool, error) {
	v, ok := m.c.Get(key)
	if !ok {
		return "", false, nil
	}
	s, _ := v.(string)
	if s == "" {
		return "", false, nil
	}
	return s, true, nil
}

// SetItem は値を保存する。
func (m *Memory) SetItem(ctx context.Context, key, value string) error {
	m.c.Set(key, value, m.ttl)
	return nil
}

// RemoveItem は値を削除する。
func (m *Memory) RemoveItem(ctx context.Context, key string) error {
	m.c.Delete(key)
	return nil
}

// Ping は常に成功する。
func (m *Memory) Ping(ctx context.Context) error {
	return nil
}

// Close は全エントリを破棄する。
func (m *Memory) Close() error {
	m.c.Flush()
	return nil
}

// ItemCount は保持しているエントリ数を返す。テスト用。
func (m *Memory) ItemCount() int {
	return m.c.ItemCount()
}

var _ Store = (*Memory)(nil)
