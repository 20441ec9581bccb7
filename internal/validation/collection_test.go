package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCollection(t *testing.T) {
	tests := []struct {
		name       string
		collection string
		wantErr    bool
		errMsg     string
	}{
		{
			name:       "valid - lowercase",
			collection: "widgets",
		},
		{
			name:       "valid - with digits and separators",
			collection: "order_items-v2",
		},
		{
			name:       "valid - max length",
			collection: "a" + strings.Repeat("b", MaxCollectionLen-1),
		},
		{
			name:       "invalid - empty",
			collection: "",
			wantErr:    true,
			errMsg:     "cannot be empty",
		},
		{
			name:       "invalid - too long",
			collection: "a" + strings.Repeat("b", MaxCollectionLen),
			wantErr:    true,
			errMsg:     "must not exceed",
		},
		{
			name:       "invalid - uppercase",
			collection: "Widgets",
			wantErr:    true,
			errMsg:     "lowercase",
		},
		{
			name:       "invalid - starts with digit",
			collection: "1widgets",
			wantErr:    true,
		},
		{
			name:       "invalid - path traversal",
			collection: "..",
			wantErr:    true,
		},
		{
			name:       "invalid - space",
			collection: "my widgets",
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCollection(tt.collection)
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidCollection)
			if tt.errMsg != "" {
				assert.Contains(t, err.Error(), tt.errMsg)
			}
		})
	}
}

func TestValidateID(t *testing.T) {
	require.NoError(t, ValidateID("7"))
	require.NoError(t, ValidateID("b692f5c0-2d88-4aa1-a9e1-13aa6e4976d5"))

	err := ValidateID("")
	assert.ErrorIs(t, err, ErrInvalidID)

	err = ValidateID(strings.Repeat("x", MaxIDLen+1))
	assert.ErrorIs(t, err, ErrInvalidID)
}
