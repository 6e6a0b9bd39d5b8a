package repository

import (
	"context"
	"errors"
	"math"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"mediashare/internal/models"
)

type RatingRepository struct {
	pool *pgxpool.Pool
}

func NewRatingRepository(pool *pgxpool.Pool) *RatingRepository {
	return &RatingRepository{pool: pool}
}

// Upsert stores the user's rating for a photo. An existing row keeps its id and gets the
// new value; created reports whether a new row was inserted. Concurrent submissions for the
// same pair are serialized by the unique (photo_id, user_id) constraint.
func (r *RatingRepository) Upsert(ctx context.Context, rating models.Rating) (models.Rating, bool, error) {
	const query = `
		INSERT INTO ratings (id, photo_id, user_id, rating, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (photo_id, user_id)
		DO UPDATE SET
			rating = EXCLUDED.rating,
			updated_at = NOW()
		RETURNING id, created_at, updated_at, (xmax = 0) AS inserted
	`

	var created bool
	err := r.pool.QueryRow(ctx, query, rating.ID, rating.PhotoID, rating.UserID, rating.Rating).Scan(
		&rating.ID,
		&rating.CreatedAt,
		&rating.UpdatedAt,
		&created,
	)
	if err != nil {
		if missing := missingReference(err, ErrPhotoNotFound); missing != nil {
			return models.Rating{}, false, missing
		}
		return models.Rating{}, false, err
	}
	return rating, created, nil
}

func (r *RatingRepository) GetByUser(ctx context.Context, photoID, userID string) (models.Rating, error) {
	const query = `
		SELECT id, photo_id, user_id, rating, created_at, updated_at
		FROM ratings WHERE photo_id = $1 AND user_id = $2
	`
	var rating models.Rating
	if err := r.pool.QueryRow(ctx, query, photoID, userID).Scan(
		&rating.ID,
		&rating.PhotoID,
		&rating.UserID,
		&rating.Rating,
		&rating.CreatedAt,
		&rating.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Rating{}, ErrRatingNotFound
		}
		return models.Rating{}, err
	}
	return rating, nil
}

func (r *RatingRepository) ListByPhoto(ctx context.Context, photoID string) ([]models.RatingView, error) {
	const query = `
		SELECT r.id, r.photo_id, r.user_id, r.rating, r.created_at, r.updated_at, u.username
		FROM ratings r
		JOIN users u ON u.id = r.user_id
		WHERE r.photo_id = $1
		ORDER BY r.created_at DESC
	`
	rows, err := r.pool.Query(ctx, query, photoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ratings := make([]models.RatingView, 0)
	for rows.Next() {
		var view models.RatingView
		if err := rows.Scan(
			&view.ID,
			&view.PhotoID,
			&view.UserID,
			&view.Rating.Rating,
			&view.CreatedAt,
			&view.UpdatedAt,
			&view.Username,
		); err != nil {
			return nil, err
		}
		ratings = append(ratings, view)
	}
	return ratings, rows.Err()
}

// Stats returns the mean rating rounded to two decimals (0 without ratings) and the count.
func (r *RatingRepository) Stats(ctx context.Context, photoID string) (models.RatingStats, error) {
	const query = `SELECT AVG(rating)::float8, COUNT(*) FROM ratings WHERE photo_id = $1`

	var (
		avg   *float64
		stats models.RatingStats
	)
	if err := r.pool.QueryRow(ctx, query, photoID).Scan(&avg, &stats.Count); err != nil {
		return models.RatingStats{}, err
	}
	if avg != nil {
		stats.Average = math.Round(*avg*100) / 100
	}
	return stats, nil
}

func (r *RatingRepository) Delete(ctx context.Context, photoID, userID string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM ratings WHERE photo_id = $1 AND user_id = $2`, photoID, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrRatingNotFound
	}
	return nil
}
