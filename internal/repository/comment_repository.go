package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"mediashare/internal/models"
)

type CommentRepository struct {
	pool *pgxpool.Pool
}

func NewCommentRepository(pool *pgxpool.Pool) *CommentRepository {
	return &CommentRepository{pool: pool}
}

const commentViewSelect = `
	SELECT c.id, c.photo_id, c.user_id, c.content, c.created_at, c.updated_at, u.username, u.role
	FROM comments c
	JOIN users u ON u.id = c.user_id
`

func (r *CommentRepository) Create(ctx context.Context, comment models.Comment) (models.CommentView, error) {
	const query = `
		INSERT INTO comments (id, photo_id, user_id, content, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
	`
	if _, err := r.pool.Exec(ctx, query, comment.ID, comment.PhotoID, comment.UserID, comment.Content); err != nil {
		if missing := missingReference(err, ErrPhotoNotFound); missing != nil {
			return models.CommentView{}, missing
		}
		return models.CommentView{}, err
	}
	return r.GetView(ctx, comment.ID)
}

func (r *CommentRepository) GetView(ctx context.Context, id string) (models.CommentView, error) {
	view, err := scanCommentView(r.pool.QueryRow(ctx, commentViewSelect+` WHERE c.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.CommentView{}, ErrCommentNotFound
		}
		return models.CommentView{}, err
	}
	return view, nil
}

func (r *CommentRepository) GetByID(ctx context.Context, id string) (models.Comment, error) {
	const query = `
		SELECT id, photo_id, user_id, content, created_at, updated_at
		FROM comments WHERE id = $1
	`
	var comment models.Comment
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&comment.ID,
		&comment.PhotoID,
		&comment.UserID,
		&comment.Content,
		&comment.CreatedAt,
		&comment.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Comment{}, ErrCommentNotFound
		}
		return models.Comment{}, err
	}
	return comment, nil
}

func (r *CommentRepository) ListByPhoto(ctx context.Context, photoID string) ([]models.CommentView, error) {
	rows, err := r.pool.Query(ctx, commentViewSelect+` WHERE c.photo_id = $1 ORDER BY c.created_at DESC`, photoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	comments := make([]models.CommentView, 0)
	for rows.Next() {
		view, err := scanCommentView(rows)
		if err != nil {
			return nil, err
		}
		comments = append(comments, view)
	}
	return comments, rows.Err()
}

func (r *CommentRepository) UpdateContent(ctx context.Context, id string, content string) error {
	const query = `UPDATE comments SET content = $2, updated_at = NOW() WHERE id = $1`
	cmd, err := r.pool.Exec(ctx, query, id, content)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrCommentNotFound
	}
	return nil
}

func (r *CommentRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM comments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrCommentNotFound
	}
	return nil
}

func scanCommentView(row pgx.Row) (models.CommentView, error) {
	var view models.CommentView
	err := row.Scan(
		&view.ID,
		&view.PhotoID,
		&view.UserID,
		&view.Content,
		&view.CreatedAt,
		&view.UpdatedAt,
		&view.Username,
		&view.Role,
	)
	return view, err
}
