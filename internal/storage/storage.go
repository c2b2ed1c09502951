// Package storage はブラウザごとのキー・バリューストレージを提供する。
// ブラウザのlocalStorage相当の役割をサーバー側のバックエンド（メモリ、Redis、PostgreSQL）で担う。
package storage

import (
	"context"
	"strings"
)

// Store は文字列キー・バリューストレージのインターフェース。
// 値が存在しない、または空文字列の場合、GetItemはok=falseを返す。
// 存在しないキーのRemoveItemはエラーにならない。
type Store interface {
	GetItem(ctx context.Context, key string) (string, bool, error)
	SetItem(ctx context.Context, key, value string) error
	RemoveItem(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}

// scopedStore は1つのブラウザ（クライアントID）専用の名前空間を持つStore。
type scopedStore struct {
	base   Store
	prefix string
}

// Scoped はキーを "client:<clientID>:<key>" に変換するStoreを返す。
// 各ブラウザは自分のエントリのみを参照できる。
// Closeは下位のStoreを閉じない。
func Scoped(base Store, clientID string) Store {
	return &scopedStore{
		base:   base,
		prefix: "client:" + clientID + ":",
	}
}

func (s *scopedStore) key(k string) string {
	return s.prefix + k
}

func (s *scopedStore) GetItem(ctx context.Context, key string) (string, bool, error) {
	return s.base.GetItem(ctx, s.key(key))
}

func (s *scopedStore) SetItem(ctx context.Context, key, value string) error {
	return s.base.SetItem(ctx, s.key(key), value)
}

func (s *scopedStore) RemoveItem(ctx context.Context, key string) error {
	return s.base.RemoveItem(ctx, s.key(key))
}

func (s *scopedStore) Ping(ctx context.Context) error {
	return s.base.Ping(ctx)
}

func (s *scopedStore) Close() error {
	return nil
}

// joinKey はプレフィックスとキーを":"で連結する。プレフィックスが空の場合はキーをそのまま返す。
func joinKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return strings.TrimSuffix(prefix, ":") + ":" + key
}
