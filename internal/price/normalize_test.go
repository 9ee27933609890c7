package price

import (
	"testing"

	fuzz "github.com/AdaLogics/go-fuzz-headers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		text string
		want float64
	}{
		{"$1,234.56", 1234.56},
		{"₹2,000", 2000},
		{"Price: 99.99", 99.99},
		{"Rs. 45,999.", 45999},
		{"  12 ", 12},
		{"from 3.50 to 9.00", 3.50},
		{"$.99", 0.99},
		{"Rs.45,999", 45999},
	}
	for _, tc := range cases {
		t.Run(tc.text, func(t *testing.T) {
			got, err := Normalize(tc.text)
			require.NoError(t, err)
			assert.InDelta(t, tc.want, got, 1e-9)
		})
	}
}

func TestNormalizeRejects(t *testing.T) {
	_, err := Normalize("Currently unavailable")
	assert.ErrorIs(t, err, errNoNumber)
	assert.NotErrorIs(t, err, ErrParseFailure)

	_, err = Normalize("$0.00")
	assert.ErrorIs(t, err, ErrParseFailure)

	_, err = Normalize("1.2.3")
	assert.ErrorIs(t, err, ErrParseFailure)

	_, err = Normalize("")
	assert.ErrorIs(t, err, errNoNumber)
}

func TestDetectCurrency(t *testing.T) {
	cases := map[string]string{
		"$1,234.56":    "USD",
		"US$ 12":       "USD",
		"₹2,000":       "INR",
		"Rs. 500":      "INR",
		"€ 10,00":      "EUR",
		"£7.99":        "GBP",
		"Price: 99.99": "",
		"₹99 (was $5)": "INR",
	}
	for text, want := range cases {
		assert.Equal(t, want, DetectCurrency(text), text)
	}
}

// FuzzNormalize checks that Normalize never panics and never returns a
// non-positive value without an error.
func FuzzNormalize(f *testing.F) {
	f.Add([]byte("$1,234.56"))
	f.Add([]byte("₹2,000"))
	f.Fuzz(func(t *testing.T, data []byte) {
		fz := fuzz.NewConsumer(data)
		prefix, err := fz.GetString()
		if err != nil {
			return
		}
		digits, err := fz.GetString()
		if err != nil {
			return
		}
		v, err := Normalize(prefix + digits)
		if err == nil && v <= 0 {
			t.Fatalf("Normalize(%q) = %v with no error", prefix+digits, v)
		}
		_ = DetectCurrency(prefix + digits)
	})
}
