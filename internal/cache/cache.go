// Package cache provides metadata.Store backends for persisting dataset schemas.
// Supports a local directory of JSON files (the default, co-located with the
// downloaded data) and Redis for sharing schemas between machines.
package cache

import (
	"fmt"
	"strings"
)

// metadataSuffix is appended to the public table name to form the store key.
const metadataSuffix = "_metadata.json"

// validTable rejects table names that would escape the cache directory or
// produce an ambiguous key.
func validTable(table string) error {
	if table == "" {
		return fmt.Errorf("table name is required")
	}
	if strings.ContainsAny(table, `/\`) || strings.Contains(table, "..") {
		return fmt.Errorf("invalid table name %q", table)
	}
	return nil
}
