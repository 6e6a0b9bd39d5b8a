package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"mediashare/internal/models"
)

type PhotoRepository struct {
	pool *pgxpool.Pool
}

func NewPhotoRepository(pool *pgxpool.Pool) *PhotoRepository {
	return &PhotoRepository{pool: pool}
}

const photoColumns = `
	p.id, p.creator_id, p.title, p.caption, p.location, p.people,
	p.file_path, p.original_path, p.thumbnail_path, p.file_name,
	COALESCE(p.mime_type, ''), COALESCE(p.file_size, 0), p.media_type,
	p.created_at, p.updated_at
`

const summarySelect = `
	SELECT ` + photoColumns + `,
	       u.username,
	       (SELECT AVG(r.rating)::float8 FROM ratings r WHERE r.photo_id = p.id) AS avg_rating,
	       (SELECT COUNT(*) FROM ratings r WHERE r.photo_id = p.id) AS rating_count,
	       (SELECT COUNT(*) FROM comments c WHERE c.photo_id = p.id) AS comment_count
	FROM photos p
	JOIN users u ON u.id = p.creator_id
`

func (r *PhotoRepository) Create(ctx context.Context, photo models.Photo) (models.Photo, error) {
	const query = `
		INSERT INTO photos (
			id, creator_id, title, caption, location, people, file_path, original_path,
			thumbnail_path, file_name, mime_type, file_size, media_type, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8,
			$9, $10, $11, $12, $13, NOW(), NOW()
		)
		RETURNING created_at, updated_at
	`

	err := r.pool.QueryRow(ctx, query,
		photo.ID,
		photo.CreatorID,
		photo.Title,
		photo.Caption,
		photo.Location,
		photo.People,
		photo.FilePath,
		photo.OriginalPath,
		photo.ThumbnailPath,
		photo.FileName,
		photo.MimeType,
		photo.FileSize,
		photo.MediaType,
	).Scan(&photo.CreatedAt, &photo.UpdatedAt)
	if err != nil {
		if missing := missingReference(err, ErrUserNotFound); missing != nil {
			return models.Photo{}, missing
		}
		return models.Photo{}, err
	}
	return photo, nil
}

func (r *PhotoRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM photos WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

func (r *PhotoRepository) GetSummary(ctx context.Context, id string) (models.PhotoSummary, error) {
	row := r.pool.QueryRow(ctx, summarySelect+` WHERE p.id = $1`, id)
	summary, err := scanSummary(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.PhotoSummary{}, ErrPhotoNotFound
		}
		return models.PhotoSummary{}, err
	}
	return summary, nil
}

// List returns one page of summaries matching filter, newest first.
func (r *PhotoRepository) List(ctx context.Context, filter models.PhotoFilter, limit, offset int) ([]models.PhotoSummary, error) {
	where, args := buildPhotoFilter(filter)
	args = append(args, limit, offset)
	query := fmt.Sprintf("%s %s ORDER BY p.created_at DESC, p.id DESC LIMIT $%d OFFSET $%d",
		summarySelect, where, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := make([]models.PhotoSummary, 0, limit)
	for rows.Next() {
		summary, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, summary)
	}
	return summaries, rows.Err()
}

func (r *PhotoRepository) Count(ctx context.Context, filter models.PhotoFilter) (int64, error) {
	where, args := buildPhotoFilter(filter)
	query := `SELECT COUNT(*) FROM photos p JOIN users u ON u.id = p.creator_id ` + where

	var total int64
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// Delete removes a photo inside a transaction. beforeDelete runs with the row locked and
// may veto the delete by returning an error, which rolls the transaction back.
func (r *PhotoRepository) Delete(ctx context.Context, id string, beforeDelete func(models.Photo) error) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `SELECT `+photoColumns+` FROM photos p WHERE p.id = $1 FOR UPDATE`, id)
		photo, err := scanPhoto(row)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrPhotoNotFound
			}
			return err
		}

		if err := beforeDelete(photo); err != nil {
			return err
		}

		cmd, err := tx.Exec(ctx, `DELETE FROM photos WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return ErrPhotoNotFound
		}
		return nil
	})
}

// ReferencedPaths reports which of paths are used by any catalog row.
func (r *PhotoRepository) ReferencedPaths(ctx context.Context, paths []string) (map[string]bool, error) {
	const query = `
		SELECT path FROM (
			SELECT file_path AS path FROM photos WHERE file_path = ANY($1)
			UNION
			SELECT original_path FROM photos WHERE original_path = ANY($1)
			UNION
			SELECT thumbnail_path FROM photos WHERE thumbnail_path = ANY($1)
		) refs
	`
	rows, err := r.pool.Query(ctx, query, paths)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	referenced := make(map[string]bool, len(paths))
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, err
		}
		referenced[path] = true
	}
	return referenced, rows.Err()
}

func buildPhotoFilter(filter models.PhotoFilter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.MediaType != "" {
		clauses = append(clauses, "p.media_type = "+next(filter.MediaType))
	}
	if filter.CreatorID != "" {
		clauses = append(clauses, "p.creator_id = "+next(filter.CreatorID))
	}
	if filter.Query != "" {
		pattern := next(likePattern(filter.Query))
		clauses = append(clauses, fmt.Sprintf("(p.title ILIKE %[1]s OR p.caption ILIKE %[1]s OR p.people ILIKE %[1]s)", pattern))
	}
	if filter.Location != "" {
		clauses = append(clauses, "p.location ILIKE "+next(likePattern(filter.Location)))
	}
	if filter.Creator != "" {
		clauses = append(clauses, "u.username ILIKE "+next(likePattern(filter.Creator)))
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern matches term as a literal substring.
func likePattern(term string) string {
	return "%" + likeEscaper.Replace(term) + "%"
}

func scanPhoto(row pgx.Row) (models.Photo, error) {
	var photo models.Photo
	err := row.Scan(
		&photo.ID,
		&photo.CreatorID,
		&photo.Title,
		&photo.Caption,
		&photo.Location,
		&photo.People,
		&photo.FilePath,
		&photo.OriginalPath,
		&photo.ThumbnailPath,
		&photo.FileName,
		&photo.MimeType,
		&photo.FileSize,
		&photo.MediaType,
		&photo.CreatedAt,
		&photo.UpdatedAt,
	)
	return photo, err
}

func scanSummary(row pgx.Row) (models.PhotoSummary, error) {
	var s models.PhotoSummary
	err := row.Scan(
		&s.ID,
		&s.CreatorID,
		&s.Title,
		&s.Caption,
		&s.Location,
		&s.People,
		&s.FilePath,
		&s.OriginalPath,
		&s.ThumbnailPath,
		&s.FileName,
		&s.MimeType,
		&s.FileSize,
		&s.MediaType,
		&s.CreatedAt,
		&s.UpdatedAt,
		&s.CreatorUsername,
		&s.AvgRating,
		&s.RatingCount,
		&s.CommentCount,
	)
	return s, err
}
