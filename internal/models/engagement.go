package models

import "time"

type Comment struct {
	ID        string
	PhotoID   string
	UserID    string
	Content   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CommentView is a comment joined with its author.
type CommentView struct {
	Comment
	Username string
	Role     UserRole
}

type Rating struct {
	ID        string
	PhotoID   string
	UserID    string
	Rating    int
	CreatedAt time.Time
	UpdatedAt time.Time
}

type RatingView struct {
	Rating
	Username string
}

type RatingStats struct {
	Average float64
	Count   int64
}
