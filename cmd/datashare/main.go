// Точка входа Datashare — сервис обмена файлами по временным ссылкам.
// Подкоманды: serve (HTTP API + фоновая очистка), migrate (схема БД),
// sweep (однократная очистка просроченных файлов).
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
