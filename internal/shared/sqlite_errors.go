// Package shared holds small helpers used by more than one process.
//
//nolint:revive // "shared" is an intentional package name for cross-cutting helpers.
package shared

import "strings"

// SQLite reports lock contention between the responder and the console
// either as SQLITE_BUSY or as "database is locked", depending on which
// connection hit the lock.
var conflictMarkers = []string{"SQLITE_BUSY", "database is locked"}

// IsSQLiteConflictError reports whether err is a SQLite lock contention
// error that is worth retrying.
func IsSQLiteConflictError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, m := range conflictMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
