package adjustment

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseAspectRatio(t *testing.T) {
	for _, valid := range []string{"16:9", "1:1", "24:98", "500:600"} {
		t.Run(valid, func(t *testing.T) {
			a, err := ParseAspectRatio(valid)
			require.NoError(t, err)
			require.Equal(t, valid, a.String())
		})
	}

	for _, invalid := range []string{"invalid", "16 9", "something:else", "something:8", "1:-8", "1:foo", "0:5"} {
		t.Run(invalid, func(t *testing.T) {
			_, err := ParseAspectRatio(invalid)
			require.ErrorIs(t, err, ErrInvalidAspectRatio)
		})
	}
}

func TestAspectRatio_Parts(t *testing.T) {
	a, err := ParseAspectRatio("16:9")
	require.NoError(t, err)
	require.Equal(t, 16, a.Width)
	require.Equal(t, 9, a.Height)
	require.InDelta(t, 16.0/9.0, a.Ratio(), 1e-9)
	require.True(t, AspectRatio{}.IsZero())
}
