package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	s, err := Compile("money.json", map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"total": MoneyProp(),
			"name":  StringProp(),
		},
		"required": []string{"total"},
	})
	require.NoError(t, err)

	tests := []struct {
		name    string
		data    string
		wantErr bool
	}{
		{name: "valid", data: `{"total":"571.04","name":"x"}`},
		{name: "negative", data: `{"total":"-3"}`},
		{name: "missing required", data: `{"name":"x"}`, wantErr: true},
		{name: "number instead of string", data: `{"total":571.04}`, wantErr: true},
		{name: "comma decimal", data: `{"total":"84,03"}`, wantErr: true},
		{name: "unknown key", data: `{"total":"1","extra":true}`, wantErr: true},
		{name: "not json", data: `{`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(s, []byte(tt.data))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
