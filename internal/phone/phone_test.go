// internal/phone/phone_test.go
package phone

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"tapcash-pos/internal/util"
)

func TestCanonicalize(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"TrunkPrefixReplaced", "0788123456", "250788123456"},
		{"ShortLocalPrefixed", "788123456", "250788123456"},
		{"AlreadyCanonical", "250788123456", "250788123456"},
		{"FormattingStripped", "+250 788-123-456", "250788123456"},
		{"AirtelTrunk", "0723456789", "250723456789"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Canonicalize(tc.in))
		})
	}
}

func TestValidate(t *testing.T) {
	t.Run("ValidMTN", func(t *testing.T) {
		got, err := Validate("0788123456")
		assert.NoError(t, err)
		assert.Equal(t, "250788123456", got)
	})

	t.Run("ValidAirtel", func(t *testing.T) {
		got, err := Validate("0730000001")
		assert.NoError(t, err)
		assert.Equal(t, "250730000001", got)
	})

	t.Run("LandlineRangeRejected", func(t *testing.T) {
		_, err := Validate("0252123456")
		assert.ErrorIs(t, err, util.ErrInvalidPhone)
	})

	t.Run("TooShortRejected", func(t *testing.T) {
		_, err := Validate("0788123")
		assert.ErrorIs(t, err, util.ErrInvalidPhone)
	})

	t.Run("EmptyRejected", func(t *testing.T) {
		_, err := Validate("")
		assert.ErrorIs(t, err, util.ErrInvalidPhone)
	})
}
