// Package servicetest provides in-memory stores for exercising services and handlers
// without a database.
package servicetest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"mediashare/internal/models"
	"mediashare/internal/repository"
)

// MemDB is an in-memory stand-in for the relational store, including its uniqueness
// rules and cascading deletes.
type MemDB struct {
	mu       sync.Mutex
	now      time.Time
	users    map[string]models.User
	photos   map[string]models.Photo
	comments map[string]models.Comment
	ratings  map[string]models.Rating

	// FailPhotoCreate, when set, is returned by every photo insert.
	FailPhotoCreate error
}

func NewMemDB() *MemDB {
	return &MemDB{
		now:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		users:    make(map[string]models.User),
		photos:   make(map[string]models.Photo),
		comments: make(map[string]models.Comment),
		ratings:  make(map[string]models.Rating),
	}
}

func (db *MemDB) Users() *MemUsers       { return &MemUsers{db} }
func (db *MemDB) Photos() *MemPhotos     { return &MemPhotos{db} }
func (db *MemDB) Comments() *MemComments { return &MemComments{db} }
func (db *MemDB) Ratings() *MemRatings   { return &MemRatings{db} }

// AddUser inserts user as is, bypassing uniqueness checks.
func (db *MemDB) AddUser(user models.User) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.users[user.ID] = user
}

// AddPhoto inserts photo with the next creation timestamp.
func (db *MemDB) AddPhoto(photo models.Photo) models.Photo {
	db.mu.Lock()
	defer db.mu.Unlock()
	photo.CreatedAt = db.tick()
	photo.UpdatedAt = photo.CreatedAt
	db.photos[photo.ID] = photo
	return photo
}

func (db *MemDB) PhotoCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.photos)
}

func (db *MemDB) RatingCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.ratings)
}

func (db *MemDB) Comment(id string) (models.Comment, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	c, ok := db.comments[id]
	return c, ok
}

func (db *MemDB) tick() time.Time {
	db.now = db.now.Add(time.Second)
	return db.now
}

type MemUsers struct{ db *MemDB }

func (m *MemUsers) Create(_ context.Context, user models.User) (models.User, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, existing := range m.db.users {
		if existing.Username == user.Username || existing.Email == user.Email {
			return models.User{}, repository.ErrDuplicate
		}
		if user.Role == models.UserRoleAdmin && existing.Role == models.UserRoleAdmin {
			return models.User{}, repository.ErrAdminExists
		}
	}
	user.CreatedAt = m.db.tick()
	user.UpdatedAt = user.CreatedAt
	m.db.users[user.ID] = user
	return user, nil
}

func (m *MemUsers) FindByEmail(_ context.Context, email string) (models.User, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, user := range m.db.users {
		if user.Email == email {
			return user, nil
		}
	}
	return models.User{}, repository.ErrUserNotFound
}

func (m *MemUsers) GetByID(_ context.Context, id string) (models.User, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	user, ok := m.db.users[id]
	if !ok {
		return models.User{}, repository.ErrUserNotFound
	}
	return user, nil
}

func (m *MemUsers) CountByRole(_ context.Context, role models.UserRole) (int64, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var n int64
	for _, user := range m.db.users {
		if user.Role == role {
			n++
		}
	}
	return n, nil
}

func (m *MemUsers) List(_ context.Context) ([]models.User, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	users := make([]models.User, 0, len(m.db.users))
	for _, user := range m.db.users {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt.After(users[j].CreatedAt) })
	return users, nil
}

type MemPhotos struct{ db *MemDB }

func (m *MemPhotos) Create(_ context.Context, photo models.Photo) (models.Photo, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if m.db.FailPhotoCreate != nil {
		return models.Photo{}, m.db.FailPhotoCreate
	}
	photo.CreatedAt = m.db.tick()
	photo.UpdatedAt = photo.CreatedAt
	m.db.photos[photo.ID] = photo
	return photo, nil
}

func (m *MemPhotos) Exists(_ context.Context, id string) (bool, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	_, ok := m.db.photos[id]
	return ok, nil
}

func (m *MemPhotos) GetSummary(_ context.Context, id string) (models.PhotoSummary, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	photo, ok := m.db.photos[id]
	if !ok {
		return models.PhotoSummary{}, repository.ErrPhotoNotFound
	}
	return m.summaryLocked(photo), nil
}

func (m *MemPhotos) List(_ context.Context, filter models.PhotoFilter, limit, offset int) ([]models.PhotoSummary, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	matched := m.filterLocked(filter)
	if offset >= len(matched) {
		return []models.PhotoSummary{}, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	summaries := make([]models.PhotoSummary, 0, end-offset)
	for _, photo := range matched[offset:end] {
		summaries = append(summaries, m.summaryLocked(photo))
	}
	return summaries, nil
}

func (m *MemPhotos) Count(_ context.Context, filter models.PhotoFilter) (int64, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	return int64(len(m.filterLocked(filter))), nil
}

func (m *MemPhotos) Delete(_ context.Context, id string, beforeDelete func(models.Photo) error) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	photo, ok := m.db.photos[id]
	if !ok {
		return repository.ErrPhotoNotFound
	}
	if err := beforeDelete(photo); err != nil {
		return err
	}
	delete(m.db.photos, id)
	for cid, c := range m.db.comments {
		if c.PhotoID == id {
			delete(m.db.comments, cid)
		}
	}
	for rid, r := range m.db.ratings {
		if r.PhotoID == id {
			delete(m.db.ratings, rid)
		}
	}
	return nil
}

func (m *MemPhotos) filterLocked(filter models.PhotoFilter) []models.Photo {
	contains := func(field *string, term string) bool {
		return field != nil && strings.Contains(strings.ToLower(*field), strings.ToLower(term))
	}
	var out []models.Photo
	for _, photo := range m.db.photos {
		if filter.MediaType != "" && photo.MediaType != filter.MediaType {
			continue
		}
		if filter.CreatorID != "" && photo.CreatorID != filter.CreatorID {
			continue
		}
		if filter.Query != "" {
			title := photo.Title
			if !contains(&title, filter.Query) && !contains(photo.Caption, filter.Query) && !contains(photo.People, filter.Query) {
				continue
			}
		}
		if filter.Location != "" && !contains(photo.Location, filter.Location) {
			continue
		}
		if filter.Creator != "" {
			username := m.db.users[photo.CreatorID].Username
			if !contains(&username, filter.Creator) {
				continue
			}
		}
		out = append(out, photo)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *MemPhotos) summaryLocked(photo models.Photo) models.PhotoSummary {
	summary := models.PhotoSummary{Photo: photo, CreatorUsername: m.db.users[photo.CreatorID].Username}
	var sum int
	for _, r := range m.db.ratings {
		if r.PhotoID == photo.ID {
			sum += r.Rating
			summary.RatingCount++
		}
	}
	if summary.RatingCount > 0 {
		avg := float64(sum) / float64(summary.RatingCount)
		summary.AvgRating = &avg
	}
	for _, c := range m.db.comments {
		if c.PhotoID == photo.ID {
			summary.CommentCount++
		}
	}
	return summary
}

type MemComments struct{ db *MemDB }

func (m *MemComments) Create(_ context.Context, comment models.Comment) (models.CommentView, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if _, ok := m.db.photos[comment.PhotoID]; !ok {
		return models.CommentView{}, repository.ErrPhotoNotFound
	}
	if _, ok := m.db.users[comment.UserID]; !ok {
		return models.CommentView{}, repository.ErrUserNotFound
	}
	comment.CreatedAt = m.db.tick()
	comment.UpdatedAt = comment.CreatedAt
	m.db.comments[comment.ID] = comment
	user := m.db.users[comment.UserID]
	return models.CommentView{Comment: comment, Username: user.Username, Role: user.Role}, nil
}

func (m *MemComments) GetByID(_ context.Context, id string) (models.Comment, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	comment, ok := m.db.comments[id]
	if !ok {
		return models.Comment{}, repository.ErrCommentNotFound
	}
	return comment, nil
}

func (m *MemComments) ListByPhoto(_ context.Context, photoID string) ([]models.CommentView, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	views := make([]models.CommentView, 0)
	for _, c := range m.db.comments {
		if c.PhotoID == photoID {
			user := m.db.users[c.UserID]
			views = append(views, models.CommentView{Comment: c, Username: user.Username, Role: user.Role})
		}
	}
	sort.Slice(views, func(i, j int) bool { return views[i].CreatedAt.After(views[j].CreatedAt) })
	return views, nil
}

func (m *MemComments) UpdateContent(_ context.Context, id string, content string) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	comment, ok := m.db.comments[id]
	if !ok {
		return repository.ErrCommentNotFound
	}
	comment.Content = content
	comment.UpdatedAt = m.db.tick()
	m.db.comments[id] = comment
	return nil
}

func (m *MemComments) Delete(_ context.Context, id string) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if _, ok := m.db.comments[id]; !ok {
		return repository.ErrCommentNotFound
	}
	delete(m.db.comments, id)
	return nil
}

type MemRatings struct{ db *MemDB }

func (m *MemRatings) Upsert(_ context.Context, rating models.Rating) (models.Rating, bool, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if _, ok := m.db.photos[rating.PhotoID]; !ok {
		return models.Rating{}, false, repository.ErrPhotoNotFound
	}
	if _, ok := m.db.users[rating.UserID]; !ok {
		return models.Rating{}, false, repository.ErrUserNotFound
	}
	for id, existing := range m.db.ratings {
		if existing.PhotoID == rating.PhotoID && existing.UserID == rating.UserID {
			existing.Rating = rating.Rating
			existing.UpdatedAt = m.db.tick()
			m.db.ratings[id] = existing
			return existing, false, nil
		}
	}
	rating.CreatedAt = m.db.tick()
	rating.UpdatedAt = rating.CreatedAt
	m.db.ratings[rating.ID] = rating
	return rating, true, nil
}

func (m *MemRatings) GetByUser(_ context.Context, photoID, userID string) (models.Rating, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, r := range m.db.ratings {
		if r.PhotoID == photoID && r.UserID == userID {
			return r, nil
		}
	}
	return models.Rating{}, repository.ErrRatingNotFound
}

func (m *MemRatings) ListByPhoto(_ context.Context, photoID string) ([]models.RatingView, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	views := make([]models.RatingView, 0)
	for _, r := range m.db.ratings {
		if r.PhotoID == photoID {
			views = append(views, models.RatingView{Rating: r, Username: m.db.users[r.UserID].Username})
		}
	}
	return views, nil
}

func (m *MemRatings) Stats(_ context.Context, photoID string) (models.RatingStats, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var (
		stats models.RatingStats
		sum   int
	)
	for _, r := range m.db.ratings {
		if r.PhotoID == photoID {
			sum += r.Rating
			stats.Count++
		}
	}
	if stats.Count > 0 {
		stats.Average = float64(sum) / float64(stats.Count)
	}
	return stats, nil
}

func (m *MemRatings) Delete(_ context.Context, photoID, userID string) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for id, r := range m.db.ratings {
		if r.PhotoID == photoID && r.UserID == userID {
			delete(m.db.ratings, id)
			return nil
		}
	}
	return repository.ErrRatingNotFound
}

// RecordingInvalidator remembers every invalidation and returns Err.
type RecordingInvalidator struct {
	mu    sync.Mutex
	calls [][]string
	Err   error
}

func (r *RecordingInvalidator) Invalidate(_ context.Context, tags ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, tags)
	return r.Err
}

func (r *RecordingInvalidator) Calls() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]string(nil), r.calls...)
}

func (r *RecordingInvalidator) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}
