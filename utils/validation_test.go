// utils/validation_test.go
package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidatePhone(t *testing.T) {
	assert.True(t, ValidatePhone("+972 50-123-4567"))
	assert.True(t, ValidatePhone("(555) 0100123"))
	assert.False(t, ValidatePhone("not-a-phone"))
	assert.False(t, ValidatePhone("+0123"))
	assert.False(t, ValidatePhone(""))
}
