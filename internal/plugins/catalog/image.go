package catalog

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"net/http"

	// Register decoders for image formats.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// imageInfo describes a validated image body.
type imageInfo struct {
	ContentType string
	Format      string
	Width       int
	Height      int
}

// inspectImage sniffs the content type of data, checks it against the allowed
// types and their magic bytes, and decodes the image header for dimensions.
func inspectImage(data []byte) (*imageInfo, error) {
	contentType := http.DetectContentType(data)
	if !AllowedMimeTypes[contentType] {
		return nil, fmt.Errorf("unsupported content type %s", contentType)
	}
	if !validateMagicBytes(data, contentType) {
		return nil, fmt.Errorf("content does not match %s", contentType)
	}

	w, h, err := imageDimensions(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return &imageInfo{
		ContentType: contentType,
		Format:      MimeToFormat[contentType],
		Width:       w,
		Height:      h,
	}, nil
}

// imageDimensions reads just enough of r to report the image size.
func imageDimensions(r io.Reader) (int, int, error) {
	cfg, _, err := image.DecodeConfig(r)
	if err != nil {
		return 0, 0, fmt.Errorf("decoding image header: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}

// validateMagicBytes checks that the content's magic bytes match the MIME
// type. Prevents storing non-image files behind an image extension.
func validateMagicBytes(data []byte, mimeType string) bool {
	if len(data) < 4 {
		return false
	}
	switch mimeType {
	case "image/jpeg":
		return data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF
	case "image/png":
		return len(data) >= 8 &&
			data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 &&
			data[4] == 0x0D && data[5] == 0x0A && data[6] == 0x1A && data[7] == 0x0A
	case "image/gif":
		return len(data) >= 6 && string(data[:3]) == "GIF"
	case "image/webp":
		return len(data) >= 12 && string(data[:4]) == "RIFF" && string(data[8:12]) == "WEBP"
	default:
		return false
	}
}
