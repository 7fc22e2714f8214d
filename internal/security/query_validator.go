package security

import (
	"errors"
	"strings"
)

var (
	ErrUnsafeQuery     = errors.New("unsafe query detected")
	ErrMultipleQueries = errors.New("multi-statement queries are not allowed")
	ErrNotReadOnly     = errors.New("only SELECT or find queries are allowed")
	ErrInvalidEmail    = errors.New("invalid email address format")
)

// ValidateEmail checks that the address cannot smuggle extra headers into a
// notification mail.
func ValidateEmail(email string) error {
	if strings.ContainsAny(email, "\r\n") {
		return ErrInvalidEmail
	}
	atIdx := strings.Index(email, "@")
	dotIdx := strings.LastIndex(email, ".")
	if atIdx < 1 || dotIdx < atIdx+2 || dotIdx == len(email)-1 {
		return ErrInvalidEmail
	}
	return nil
}

// ValidateQuery enforces the read-only contract on submitted queries:
//  1. Must be a SELECT statement or a document find query.
//  2. Must not contain multiple statements (semicolons).
//  3. Must not contain DML/DDL keywords.
//  4. Must not touch restricted system tables.
func ValidateQuery(query string) error {
	q := strings.TrimSpace(query)
	qUpper := strings.ToUpper(q)

	if !strings.HasPrefix(qUpper, "SELECT") && !strings.Contains(qUpper, ".FIND(") {
		return ErrNotReadOnly
	}

	if strings.Contains(q, ";") {
		return ErrMultipleQueries
	}

	forbidden := []string{
		"DELETE", "DROP", "INSERT", "UPDATE", "ALTER", "TRUNCATE", "GRANT", "REVOKE",
		"CREATE", "REPLACE", "CALL", "DO", "HANDLER", "LOAD", "UNION",
		"USER(", "VERSION(", "DATABASE(", "LOAD_FILE(", "@@VERSION", "@@HOSTNAME",
	}
	for _, word := range forbidden {
		if containsWord(qUpper, word) {
			return errors.New("forbidden keyword detected: " + word)
		}
	}

	systemTables := []string{
		"INFORMATION_SCHEMA", "MYSQL", "PERFORMANCE_SCHEMA", "SYS", "PG_CATALOG",
	}
	for _, table := range systemTables {
		if containsWord(qUpper, table) {
			return errors.New("access to system table blocked: " + table)
		}
	}

	return nil
}

// containsWord reports whether word occurs standalone in s (already
// uppercased). A bare Contains would reject column names like "deleted_at".
func containsWord(s, word string) bool {
	if !strings.Contains(s, word) {
		return false
	}

	idx := 0
	for {
		i := strings.Index(s[idx:], word)
		if i == -1 {
			return false
		}
		start := idx + i
		end := start + len(word)

		startValid := start == 0 || isBoundary(s[start-1])
		endValid := end == len(s) || isBoundary(s[end])
		if startValid && endValid {
			return true
		}
		idx = start + 1
	}
}

func isBoundary(b byte) bool {
	// Standard SQL delimiters
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' ||
		b == '(' || b == ')' || b == ',' || b == '=' ||
		b == '<' || b == '>' || b == '`' || b == '.' ||
		b == '"' || b == '[' || b == ']'
}
