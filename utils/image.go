package utils

import (
	"bytes"

	"github.com/disintegration/imaging"
)

// MakeThumbnail resizes an uploaded product photo to a 200px-wide JPEG.
// Height follows the aspect ratio.
func MakeThumbnail(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	thumbnail := imaging.Resize(img, 200, 0, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumbnail, imaging.JPEG); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
