package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// policyFile — формат TOML-файла политики ссылок.
//
//	default_days = 7
//	max_days = 7
//	forbidden_extensions = ["exe", "bat"]
//
// Незаданные ключи оставляют значения из окружения.
type policyFile struct {
	DefaultDays         *int     `toml:"default_days"`
	MaxDays             *int     `toml:"max_days"`
	ForbiddenExtensions []string `toml:"forbidden_extensions"`
}

// applyPolicyFile читает TOML-файл политики и перекрывает им значения cfg.
func applyPolicyFile(cfg *Config, path string) error {
	var p policyFile
	md, err := toml.DecodeFile(path, &p)
	if err != nil {
		return fmt.Errorf("ошибка чтения файла политики %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("неизвестный ключ %q в файле политики %s", undecoded[0].String(), path)
	}

	if p.DefaultDays != nil {
		cfg.ShareDefaultDays = *p.DefaultDays
	}
	if p.MaxDays != nil {
		cfg.ShareMaxDays = *p.MaxDays
	}
	if md.IsDefined("forbidden_extensions") {
		cfg.ForbiddenExtensions = normalizeExtensions(p.ForbiddenExtensions)
	}
	return nil
}
