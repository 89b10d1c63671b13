package utils

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateTaxID(t *testing.T) {
	tests := []struct {
		name    string
		taxID   string
		wantErr bool
	}{
		{"valid", "913201143027142012", false},
		{"valid with letters", "91320114MA1W9XYZ0K", false},
		{"too short", "9132011430271420", true},
		{"lowercase", "91320114ma1w9xyz0k", true},
		{"forbidden letter I", "91320114MA1W9XYZ0I", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTaxID(tt.taxID)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateDate(t *testing.T) {
	assert.NoError(t, ValidateDate("2025-06-01"))
	assert.Error(t, ValidateDate("2025/06/01"))
	assert.Error(t, ValidateDate("2025-02-30"))
	assert.Error(t, ValidateDate(""))
}

func TestValidateAmount(t *testing.T) {
	assert.NoError(t, ValidateAmount(0))
	assert.NoError(t, ValidateAmount(320.5))
	assert.Error(t, ValidateAmount(-1))
	assert.Error(t, ValidateAmount(math.NaN()))
	assert.Error(t, ValidateAmount(math.Inf(1)))
}

func TestSanitizeAPIKey(t *testing.T) {
	assert.Equal(t, "sk-abc123", SanitizeAPIKey("  sk-abc\u200b123\n"))
	assert.Equal(t, "sk-key", SanitizeAPIKey("sk-key！"))
	assert.Equal(t, "", SanitizeAPIKey(""))
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "发票明细", SanitizeString("发票\x00明细\x7f"))
}
