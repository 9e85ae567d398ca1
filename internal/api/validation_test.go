package api

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeAndValidate(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{name: "valid", body: `{"target_id":4,"action":"like"}`},
		{name: "malformed", body: `{"target_id":`, wantErr: "invalid JSON body"},
		{name: "unknown field", body: `{"target_id":4,"action":"like","x":1}`, wantErr: "invalid JSON body"},
		{name: "trailing data", body: `{"target_id":4,"action":"like"}{}`, wantErr: "invalid JSON body"},
		{name: "missing target", body: `{"action":"like"}`, wantErr: "target_id is required"},
		{name: "bad action", body: `{"target_id":4,"action":"superlike"}`, wantErr: "action must be one of: like pass"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req swipeRequest
			err := decodeAndValidate(strings.NewReader(tt.body), &req)
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, int64(4), req.TargetID)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantErr, err.Error())
		})
	}
}
