// internal/common/validation/schema_test.go
package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const taskSchema = `{
  "type": "object",
  "required": ["userTask"],
  "properties": {
    "userTask": {"type": "string", "minLength": 1},
    "tokens": {"type": "integer", "minimum": 0}
  }
}`

func TestSchema_Validate(t *testing.T) {
	s := MustCompile("task", taskSchema)

	tests := []struct {
		name      string
		doc       string
		valid     bool
		wantField string
	}{
		{"valid document", `{"userTask":"log workout","tokens":3}`, true, ""},
		{"missing required", `{"tokens":3}`, false, "(root)"},
		{"wrong type", `{"userTask":"x","tokens":"many"}`, false, "tokens"},
		{"empty string", `{"userTask":""}`, false, "userTask"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := s.Validate([]byte(tt.doc))
			require.NoError(t, err)
			assert.Equal(t, tt.valid, res.Valid)
			if !tt.valid {
				require.NotEmpty(t, res.Errors)
				assert.Equal(t, tt.wantField, res.Errors[0].Field)
				assert.NotEmpty(t, res.Error())
			}
		})
	}
}

func TestSchema_MalformedJSON(t *testing.T) {
	s := MustCompile("task", taskSchema)
	_, err := s.Validate([]byte(`{"userTask":`))
	assert.Error(t, err)
}

func TestCompile_InvalidSchema(t *testing.T) {
	_, err := Compile("broken", `{"type": 12}`)
	assert.Error(t, err)
	assert.Panics(t, func() { MustCompile("broken", `not json`) })
}
