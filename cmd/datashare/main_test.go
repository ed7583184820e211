package main

import (
	"context"
	"errors"
	"testing"
)

func TestRootCommand_Subcommands(t *testing.T) {
	root := NewRootCommand()

	for _, name := range []string{"serve", "migrate", "sweep", "dev-idp"} {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("подкоманда %s не найдена: %v", name, err)
		}
	}

	cmd, _, err := root.Find([]string{"migrate", "version"})
	if err != nil || cmd.Name() != "version" {
		t.Errorf("подкоманда migrate version не найдена: %v", err)
	}
}

func TestPostgresOnlyCommands_MemoryBackend(t *testing.T) {
	t.Setenv("DS_DATA_DIR", t.TempDir())
	t.Setenv("DS_METADATA_BACKEND", "memory")
	t.Setenv("DS_LOG_LEVEL", "error")

	for _, args := range [][]string{{"migrate", "up"}, {"migrate", "version"}, {"sweep"}} {
		root := NewRootCommand()
		root.SetArgs(args)
		root.SetOut(nil)

		err := root.ExecuteContext(context.Background())
		if !errors.Is(err, errMemoryBackend) {
			t.Errorf("%v: хотели errMemoryBackend, получили %v", args, err)
		}
	}
}

func TestServe_InvalidConfig(t *testing.T) {
	t.Setenv("DS_DATA_DIR", "")

	root := NewRootCommand()
	root.SetArgs([]string{"serve"})
	if err := root.ExecuteContext(context.Background()); err == nil {
		t.Fatal("ожидалась ошибка без DS_DATA_DIR")
	}
}
