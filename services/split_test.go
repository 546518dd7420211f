package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeSplitDefaultRates(t *testing.T) {
	split := ComputeSplit(1000, 0, 15)

	assert.Equal(t, 0.0, split.Tax)
	assert.Equal(t, 150.0, split.Commission)
	assert.Equal(t, 850.0, split.ProviderAmount)
}

func TestComputeSplitWithTax(t *testing.T) {
	// Tax-inclusive gross: 11% VAT carved out of 1110 leaves a net base of
	// 1000.
	split := ComputeSplit(1110, 11, 15)

	assert.Equal(t, 110.0, split.Tax)
	assert.Equal(t, 150.0, split.Commission)
	assert.Equal(t, 850.0, split.ProviderAmount)
}

func TestComputeSplitConservation(t *testing.T) {
	// Awkward amounts must still reconstruct the gross to the cent.
	cases := []struct {
		gross          float64
		taxRate        float64
		commissionRate float64
	}{
		{99.99, 0, 15},
		{33.33, 11, 15},
		{0.01, 0, 15},
		{123456.78, 11, 12.5},
		{150000, 0, 15},
	}

	for _, tc := range cases {
		split := ComputeSplit(tc.gross, tc.taxRate, tc.commissionRate)
		total := split.Tax + split.Commission + split.ProviderAmount
		assert.InDelta(t, tc.gross, total, 0.001,
			"gross=%v tax=%v commission=%v provider=%v",
			tc.gross, split.Tax, split.Commission, split.ProviderAmount)
	}
}

func TestComputeSplitZeroCommission(t *testing.T) {
	split := ComputeSplit(500, 0, 0)

	assert.Equal(t, 0.0, split.Commission)
	assert.Equal(t, 500.0, split.ProviderAmount)
}
