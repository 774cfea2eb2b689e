package persistence

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/wholesale/backend/internal/domain/shared"
	"gorm.io/gorm"
)

const sqlStateUniqueViolation = "23505"

// isUniqueViolation recognises a unique-constraint failure from any of the
// drivers the service runs on. gorm's TranslateError covers the configured
// dialects; the driver checks catch errors surfacing from raw connections.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == sqlStateUniqueViolation
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == sqlStateUniqueViolation
	}
	return false
}

// translate maps storage errors onto domain errors. dup replaces a unique
// violation so callers see their own DUPLICATE code.
func translate(err error, dup error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return shared.ErrNotFound
	case isUniqueViolation(err):
		if dup == nil {
			return shared.ErrDuplicate
		}
		return dup
	default:
		return err
	}
}
