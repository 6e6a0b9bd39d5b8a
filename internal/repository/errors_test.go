package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestMissingReference(t *testing.T) {
	fk := func(constraint string) error {
		return fmt.Errorf("insert: %w", &pgconn.PgError{Code: codeForeignKeyViolation, ConstraintName: constraint})
	}

	cases := []struct {
		name     string
		err      error
		fallback error
		want     error
	}{
		{"rating author gone", fk("ratings_user_id_fkey"), ErrPhotoNotFound, ErrUserNotFound},
		{"comment author gone", fk("comments_user_id_fkey"), ErrPhotoNotFound, ErrUserNotFound},
		{"photo creator gone", fk("photos_creator_id_fkey"), ErrUserNotFound, ErrUserNotFound},
		{"rated photo gone", fk("ratings_photo_id_fkey"), ErrPhotoNotFound, ErrPhotoNotFound},
		{"comment photo gone", fk("comments_photo_id_fkey"), ErrUserNotFound, ErrPhotoNotFound},
		{"unknown constraint", fk("custom_ref"), ErrPhotoNotFound, ErrPhotoNotFound},
		{"unique violation", &pgconn.PgError{Code: codeUniqueViolation, ConstraintName: "ratings_user_id_fkey"}, ErrPhotoNotFound, nil},
		{"plain error", errors.New("boom"), ErrPhotoNotFound, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, missingReference(tc.err, tc.fallback))
		})
	}
}
