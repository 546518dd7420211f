package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "150,000.50", FormatAmount(150000.5))
	assert.Equal(t, "1,000.00", FormatAmount(1000))
	assert.Equal(t, "999.99", FormatAmount(999.99))
	assert.Equal(t, "0.00", FormatAmount(0))
	assert.Equal(t, "-1,234.56", FormatAmount(-1234.56))
	assert.Equal(t, "1,234,567.89", FormatAmount(1234567.89))
}
