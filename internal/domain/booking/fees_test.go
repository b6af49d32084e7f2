package booking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateFees(t *testing.T) {
	tests := []struct {
		name     string
		price    int64
		fee      int64
		earnings int64
	}{
		{"price 1000 splits 70/930", 1000, 70, 930},
		{"price 100", 100, 7, 93},
		{"fee rounds down", 1, 0, 1},
		{"price 15 floors the fee", 15, 1, 14},
		{"price 99", 99, 6, 93},
		{"large price", 12_345_600, 864_192, 11_481_408},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fees, err := CalculateFees(tt.price)
			require.NoError(t, err)
			assert.Equal(t, tt.price, fees.TotalAmount)
			assert.Equal(t, tt.fee, fees.PlatformFee)
			assert.Equal(t, tt.earnings, fees.ProviderEarnings)
		})
	}
}

func TestCalculateFeesSplitIsExact(t *testing.T) {
	for price := int64(1); price <= 10_000; price++ {
		fees, err := CalculateFees(price)
		require.NoError(t, err)
		assert.Equal(t, price, fees.PlatformFee+fees.ProviderEarnings,
			"split must reassemble exactly for price %d", price)
	}
}

func TestCalculateFeesRejectsNonPositive(t *testing.T) {
	_, err := CalculateFees(0)
	assert.Error(t, err)

	_, err = CalculateFees(-500)
	assert.Error(t, err)
}
