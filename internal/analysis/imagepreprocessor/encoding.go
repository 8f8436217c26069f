// internal/analysis/imagepreprocessor/encoding.go
package imagepreprocessor

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// DecodeBase64 accepts plain standard base64 or a data URI.
func DecodeBase64(encoded string) ([]byte, error) {
	if strings.HasPrefix(encoded, "data:") {
		idx := strings.Index(encoded, ",")
		if idx < 0 {
			return nil, errors.New("malformed image data URI")
		}
		encoded = encoded[idx+1:]
	}
	image, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("image is not valid base64: %w", err)
	}
	return image, nil
}
