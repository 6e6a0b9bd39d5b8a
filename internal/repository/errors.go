package repository

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrPhotoNotFound   = errors.New("photo not found")
	ErrCommentNotFound = errors.New("comment not found")
	ErrRatingNotFound  = errors.New("rating not found")
	ErrDuplicate       = errors.New("duplicate record")
	ErrAdminExists     = errors.New("admin already exists")
)

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"

	constraintSingleAdmin = "users_single_admin"
)

func pgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

func isUniqueViolation(err error) bool {
	pgErr, ok := pgError(err)
	return ok && pgErr.Code == codeUniqueViolation
}

// missingReference returns the not-found sentinel for the row a foreign-key violation
// points at, fallback when the constraint is not recognised, or nil for other errors.
// Constraint names follow the Postgres default <table>_<column>_fkey.
func missingReference(err, fallback error) error {
	pgErr, ok := pgError(err)
	if !ok || pgErr.Code != codeForeignKeyViolation {
		return nil
	}
	switch {
	case strings.HasSuffix(pgErr.ConstraintName, "_user_id_fkey"),
		strings.HasSuffix(pgErr.ConstraintName, "_creator_id_fkey"):
		return ErrUserNotFound
	case strings.HasSuffix(pgErr.ConstraintName, "_photo_id_fkey"):
		return ErrPhotoNotFound
	default:
		return fallback
	}
}
