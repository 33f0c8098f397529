package repositories

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// uniqueViolation is the PostgreSQL error code for unique constraint violations.
const uniqueViolation = "23505"

// isUniqueViolation reports whether err is a unique constraint violation,
// optionally on the named constraint (empty matches any).
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	if pgErr.Code != uniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

// jsonbValue converts a map to JSONB bytes for insertion, or nil for an
// empty map so the column stores NULL.
func jsonbValue(m map[string]any) (any, error) {
	if len(m) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal jsonb value: %w", err)
	}
	return data, nil
}

// unmarshalMap decodes JSONB bytes into a map, tolerating NULL columns.
func unmarshalMap(data []byte) (map[string]any, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal jsonb value: %w", err)
	}
	return m, nil
}

// jsonbStrings converts a string slice to JSONB bytes, nil when empty.
func jsonbStrings(s []string) (any, error) {
	if len(s) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal jsonb value: %w", err)
	}
	return data, nil
}

// unmarshalStrings decodes JSONB bytes into a string slice, tolerating NULL.
func unmarshalStrings(data []byte) ([]string, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var s []string
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal jsonb value: %w", err)
	}
	return s, nil
}

// likeEscaper escapes the LIKE metacharacters so a value matches literally
// inside a pattern. Node uids regularly contain underscores.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike returns s with LIKE metacharacters escaped for use as a literal
// prefix in a pattern.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// nullString returns nil if the string is empty, otherwise the string pointer.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
