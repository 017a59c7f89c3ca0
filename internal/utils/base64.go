package utils

import (
	"encoding/base64"
	"errors"
	"strings"
)

var ErrInvalidDataURI = errors.New("invalid base64 data URI")

// DecodeDataURI decodes an image sent as "data:image/png;base64,...." and
// returns the raw bytes and the file extension taken from the mime type.
func DecodeDataURI(uri string) ([]byte, string, error) {
	if !strings.HasPrefix(uri, "data:") {
		return nil, "", ErrInvalidDataURI
	}

	meta, payload, found := strings.Cut(uri, ";base64,")
	if !found {
		return nil, "", ErrInvalidDataURI
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", ErrInvalidDataURI
	}

	ext := "png"
	if idx := strings.LastIndex(meta, "/"); idx >= 0 && idx < len(meta)-1 {
		ext = meta[idx+1:]
	}

	return data, ext, nil
}
