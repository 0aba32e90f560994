package redis

import "fmt"

// Key prefix for all realm data.
const keyPrefix = "realmd"

// accountKey returns the Redis key for an account record.
func accountKey(username string) string {
	return fmt.Sprintf("%s:account:%s", keyPrefix, username)
}

// guildTableKey returns the Redis key for the guild table hash (id → guild JSON).
func guildTableKey() string {
	return fmt.Sprintf("%s:guilds", keyPrefix)
}

// auditKey returns the Redis key for the audit log list of a scope.
func auditKey(scope string) string {
	return fmt.Sprintf("%s:audit:%s", keyPrefix, scope)
}
