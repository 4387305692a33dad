// Package catalog synchronizes the shared LGTM image catalog with the media
// store. Listing maps a category to a namespace prefix and returns the first
// page of uploaded images under it; ingestion fetches an image by URL and
// stores it under the category's namespace.
package catalog

import (
	"errors"
	"time"
)

// MaxListResults caps every listing. Anything beyond it is omitted.
const MaxListResults = 100

// DeliveryTypeUpload marks resources created through ingestion. Listings only
// ever return this type.
const DeliveryTypeUpload = "upload"

// ResourceTypeImage is the only resource type the catalog stores.
const ResourceTypeImage = "image"

// Error classes. Every failure returned inside this package wraps one of
// them; none of them reach clients.
var (
	// ErrRemoteStore means the media store was unreachable or rejected the call.
	ErrRemoteStore = errors.New("remote store error")

	// ErrIngestion means the source image could not be fetched or accepted.
	ErrIngestion = errors.New("ingestion failure")

	// ErrMalformedInput means the request itself was unusable.
	ErrMalformedInput = errors.New("malformed input")

	// ErrCategoryRequired is returned when ingesting without a category.
	ErrCategoryRequired = errors.New("category is required")
)

// MediaResource is one catalog entry as stored by the media store.
type MediaResource struct {
	PublicID     string    `json:"public_id"`
	Folder       string    `json:"folder"`
	Format       string    `json:"format"`
	ResourceType string    `json:"resource_type"`
	Type         string    `json:"type"`
	CreatedAt    time.Time `json:"created_at"`
	Bytes        int64     `json:"bytes"`
	Width        int       `json:"width,omitempty"`
	Height       int       `json:"height,omitempty"`
	URL          string    `json:"url"`
	SecureURL    string    `json:"secure_url"`
}

// IngestRequest is the body of POST /upload, JSON or form-encoded.
type IngestRequest struct {
	URL      string `json:"url" form:"url"`
	Category string `json:"category" form:"category"`
}

// IngestionRecord is one row of the ingestion audit log.
type IngestionRecord struct {
	ID        int64     `json:"id"`
	SourceURL string    `json:"source_url"`
	Category  string    `json:"category"`
	PublicID  string    `json:"public_id,omitempty"`
	Succeeded bool      `json:"succeeded"`
	Bytes     int64     `json:"bytes"`
	Error     string    `json:"-"` // Server-side only.
	CreatedAt time.Time `json:"created_at"`
}

// --- Image types ---

// AllowedMimeTypes defines which source images are accepted.
var AllowedMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

// MimeToFormat maps MIME types to stored file formats.
var MimeToFormat = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
	"image/gif":  "gif",
}
