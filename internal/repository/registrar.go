package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/datashare/internal/domain/model"
)

// UploadRegistrar атомарно регистрирует загруженный файл вместе с его ссылкой.
type UploadRegistrar interface {
	RegisterUpload(ctx context.Context, f *model.FileRecord, s *model.ShareRecord) error
}

// txUploadRegistrar — реализация UploadRegistrar поверх транзакции PostgreSQL.
type txUploadRegistrar struct {
	tx *TxRunner
}

// NewUploadRegistrar создаёт регистратор загрузок.
func NewUploadRegistrar(tx *TxRunner) UploadRegistrar {
	return &txUploadRegistrar{tx: tx}
}

// RegisterUpload создаёт записи files и shares в одной транзакции.
// Ошибка любой из вставок откатывает обе.
func (r *txUploadRegistrar) RegisterUpload(ctx context.Context, f *model.FileRecord, s *model.ShareRecord) error {
	return r.tx.RunInTx(ctx, func(tx pgx.Tx) error {
		if err := NewFileRepository(tx).Create(ctx, f); err != nil {
			return err
		}
		return NewShareRepository(tx).Create(ctx, s)
	})
}
