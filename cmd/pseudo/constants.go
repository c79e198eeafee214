package main

// Default limits for CLI commands.
const (
	DefaultSearchLimit = 50
	DefaultAuditLimit  = 100
)

// dateLayouts are accepted by --since and --until.
var dateLayouts = []string{"2006-01-02T15:04:05Z07:00", "2006-01-02T15:04:05", "2006-01-02"}
