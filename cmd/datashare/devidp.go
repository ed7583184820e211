package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/bigkaa/datashare/internal/devidp"
)

// NewDevIDPCommand возвращает команду локального провайдера идентификации.
func NewDevIDPCommand() *cobra.Command {
	var (
		port    int
		keySize int
	)

	cmd := &cobra.Command{
		Use:   "dev-idp",
		Short: "Запустить локальный JWKS/JWT провайдер для разработки",
		Long: `Генерирует RSA ключ и выдаёт токены без проверки учётных данных:
  GET  /jwks   — набор ключей (укажите в DS_JWKS_URL)
  POST /token  — {"sub": "alice", "ttl_seconds": 3600}
Только для локальной разработки.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

			idp, err := devidp.New(keySize, logger)
			if err != nil {
				return err
			}

			srv := &http.Server{
				Addr:              fmt.Sprintf(":%d", port),
				Handler:           idp.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}
			go func() {
				<-cmd.Context().Done()
				_ = srv.Close()
			}()

			logger.Warn("Запуск dev-idp: токены выдаются без аутентификации",
				slog.String("addr", srv.Addr),
				slog.String("jwks", fmt.Sprintf("http://localhost:%d/jwks", port)),
			)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&port, "port", 8081, "порт HTTP-сервера")
	cmd.Flags().IntVar(&keySize, "key-size", 2048, "размер RSA ключа в битах")
	return cmd
}
