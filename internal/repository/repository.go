// Package repository persists cutting-room records in Postgres. Every query
// is scoped by workspace id.
package repository

import (
	"encoding/json"
	stderrors "errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/piwi3910/FabriCut/internal/errors"
)

type rowScanner interface {
	Scan(dest ...any) error
}

func newID() string {
	return uuid.NewString()
}

func isNoRows(err error) bool {
	return stderrors.Is(err, pgx.ErrNoRows)
}

// toJSON encodes a value for a jsonb column. nil pointers become NULL.
func toJSON(v interface{}) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to encode json column")
	}
	if string(b) == "null" {
		return nil, nil
	}
	return b, nil
}

// fromJSON decodes a jsonb column. Empty input leaves v untouched.
func fromJSON(b []byte, v interface{}) error {
	if len(b) == 0 {
		return nil
	}
	if err := json.Unmarshal(b, v); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to decode json column")
	}
	return nil
}

func limitOrDefault(limit int) int {
	if limit <= 0 || limit > 500 {
		return 100
	}
	return limit
}
