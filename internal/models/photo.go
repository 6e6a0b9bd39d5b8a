package models

import "time"

type MediaType string

const (
	MediaTypePhoto MediaType = "photo"
	MediaTypeVideo MediaType = "video"
)

// Photo is a catalog item. Videos share the table and are told apart by MediaType.
type Photo struct {
	ID            string
	CreatorID     string
	Title         string
	Caption       *string
	Location      *string
	People        *string
	FilePath      string
	OriginalPath  *string
	ThumbnailPath *string
	FileName      string
	MimeType      string
	FileSize      int64
	MediaType     MediaType
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// StoredPaths lists every stored variant URL of the item, without duplicates.
func (p Photo) StoredPaths() []string {
	seen := make(map[string]struct{}, 3)
	paths := make([]string, 0, 3)
	for _, candidate := range []*string{&p.FilePath, p.OriginalPath, p.ThumbnailPath} {
		if candidate == nil || *candidate == "" {
			continue
		}
		if _, ok := seen[*candidate]; ok {
			continue
		}
		seen[*candidate] = struct{}{}
		paths = append(paths, *candidate)
	}
	return paths
}

// PhotoSummary is a catalog item annotated with its owner name and engagement aggregates.
type PhotoSummary struct {
	Photo
	CreatorUsername string
	AvgRating       *float64
	RatingCount     int64
	CommentCount    int64
}

type Category string

const (
	CategoryAll   Category = "all"
	CategoryPhoto Category = "photo"
	CategoryVideo Category = "video"
)

// PhotoFilter narrows catalog listings. Empty fields impose no filter.
type PhotoFilter struct {
	MediaType MediaType
	CreatorID string
	Query     string
	Location  string
	Creator   string
}
