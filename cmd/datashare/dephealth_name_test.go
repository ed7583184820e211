package main

import "testing"

func TestParseOwnerName(t *testing.T) {
	tests := []struct {
		name     string
		hostname string
		want     string
	}{
		{"Deployment", "datashare-7d8f9b6c4f-x2k9z", "datashare"},
		{"Deployment с длинным именем", "datashare-api-eu-01-5fbcd8d7b9-k4m2j", "datashare-api-eu-01"},
		{"StatefulSet — ordinal 0", "datashare-0", "datashare"},
		{"StatefulSet — ordinal 42", "my-sts-42", "my-sts"},
		{"простое имя", "my-app", "my-app"},
		{"localhost", "localhost", "localhost"},
		{"заглавные буквы не похожи на суффикс пода", "build-ABCDEFG-X2K9Z", "build-ABCDEFG-X2K9Z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseOwnerName(tt.hostname); got != tt.want {
				t.Errorf("parseOwnerName(%q): хотели %q, получили %q", tt.hostname, tt.want, got)
			}
		})
	}
}
