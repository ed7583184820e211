package main

import (
	"os"
	"strings"
)

// dephealthName возвращает имя вершины графа зависимостей:
// имя владельца пода (Deployment/StatefulSet) или "datashare" вне Kubernetes.
func dephealthName() string {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		return "datashare"
	}
	return parseOwnerName(hostname)
}

// parseOwnerName извлекает имя владельца пода из hostname.
//
//	<deployment>-<hash replicaset>-<suffix> → <deployment>
//	<statefulset>-<ordinal>                 → <statefulset>
//
// Остальные имена возвращаются без изменений.
func parseOwnerName(hostname string) string {
	parts := strings.Split(hostname, "-")
	n := len(parts)

	if n >= 3 && len(parts[n-1]) == 5 && isLowerAlnum(parts[n-1]) &&
		len(parts[n-2]) >= 6 && len(parts[n-2]) <= 10 && isLowerAlnum(parts[n-2]) {
		return strings.Join(parts[:n-2], "-")
	}

	if n >= 2 && isDigits(parts[n-1]) {
		return strings.Join(parts[:n-1], "-")
	}

	return hostname
}

func isLowerAlnum(s string) bool {
	for _, c := range s {
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') {
			return false
		}
	}
	return s != ""
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return s != ""
}
