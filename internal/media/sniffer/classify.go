package sniffer

import (
	"fmt"
	"path/filepath"
	"strings"

	"mediashare/internal/models"
)

const octetStream = "application/octet-stream"

var (
	imageExtensions = map[string]string{
		".jpeg": "image/jpeg",
		".jpg":  "image/jpeg",
		".png":  "image/png",
		".gif":  "image/gif",
		".webp": "image/webp",
	}
	videoExtensions = map[string]string{
		".mp4":  "video/mp4",
		".webm": "video/webm",
		".ogg":  "video/ogg",
		".mov":  "video/quicktime",
	}
)

// RejectedError reports an upload whose extension and MIME type are both outside the
// accepted image and video sets.
type RejectedError struct {
	MIME string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("Only image (jpeg, jpg, png, gif, webp) or video (mp4, webm, ogg, mov) files are allowed. Got: %s", e.MIME)
}

type Classification struct {
	MediaType models.MediaType
	MIME      string
	Extension string
	// Sniffed is the content-detected type; empty when the bytes were not recognized.
	Sniffed MediaType
}

// Classify decides whether an upload is accepted and whether it is a photo or a video.
// The declared MIME type wins unless it is missing or generic, in which case the sniffed
// type and then the extension are used.
func Classify(fileName, declaredMIME string, head []byte) (Classification, error) {
	ext := strings.ToLower(filepath.Ext(fileName))

	var sniffed Result
	if r, err := DetectHead(head); err == nil {
		sniffed = r
	}

	mimeType := strings.ToLower(strings.TrimSpace(declaredMIME))
	if mimeType == "" || mimeType == octetStream {
		switch {
		case sniffed.MIME != "":
			mimeType = sniffed.MIME
		case imageExtensions[ext] != "":
			mimeType = imageExtensions[ext]
		case videoExtensions[ext] != "":
			mimeType = videoExtensions[ext]
		case mimeType == "":
			mimeType = octetStream
		}
	}

	_, imageExt := imageExtensions[ext]
	_, videoExt := videoExtensions[ext]
	isImage := strings.HasPrefix(mimeType, "image/")
	isVideo := strings.HasPrefix(mimeType, "video/")
	if !imageExt && !videoExt && !isImage && !isVideo {
		return Classification{}, &RejectedError{MIME: mimeType}
	}

	mediaType := models.MediaTypePhoto
	if isVideo {
		mediaType = models.MediaTypeVideo
	}

	if ext == "" {
		ext = extensionFor(mimeType)
	}

	return Classification{
		MediaType: mediaType,
		MIME:      mimeType,
		Extension: ext,
		Sniffed:   sniffed.Type,
	}, nil
}

func extensionFor(mimeType string) string {
	for _, table := range []map[string]string{imageExtensions, videoExtensions} {
		for ext, m := range table {
			if m == mimeType && ext != ".jpeg" {
				return ext
			}
		}
	}
	return ""
}
