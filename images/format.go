package images

import (
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder

	_ "golang.org/x/image/webp" // Register WebP format decoder
)

// Format represents supported image formats.
type Format string

const (
	// FormatJPEG is the JPEG image format.
	FormatJPEG Format = "jpeg"
	// FormatPNG is the PNG image format.
	FormatPNG Format = "png"
	// FormatGIF is the GIF image format.
	FormatGIF Format = "gif"
	// FormatWebP is the WebP image format.
	FormatWebP Format = "webp"
	// FormatRaw marks an image built from an in-memory raster.
	FormatRaw Format = "raw"
)

// ParseFormat maps a name reported by image.Decode to a Format.
func ParseFormat(name string) Format {
	switch name {
	case "jpeg", "jpg":
		return FormatJPEG
	case "png":
		return FormatPNG
	case "gif":
		return FormatGIF
	case "webp":
		return FormatWebP
	default:
		return FormatRaw
	}
}
