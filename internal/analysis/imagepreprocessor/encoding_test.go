// internal/analysis/imagepreprocessor/encoding_test.go
package imagepreprocessor

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeBase64(t *testing.T) {
	raw := []byte("jpeg-bytes")
	plain := base64.StdEncoding.EncodeToString(raw)

	tests := []struct {
		name    string
		in      string
		want    []byte
		wantErr bool
	}{
		{name: "plain", in: plain, want: raw},
		{name: "data uri", in: "data:image/jpeg;base64," + plain, want: raw},
		{name: "surrounding whitespace", in: "\n" + plain + " ", want: raw},
		{name: "data uri without payload", in: "data:image/jpeg;base64", wantErr: true},
		{name: "not base64", in: "%%%", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeBase64(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
