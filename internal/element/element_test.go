package element

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseColor(t *testing.T) {
	c, err := ParseColor("FF5733")
	require.NoError(t, err)
	assert.Equal(t, Color{R: 0xFF, G: 0x57, B: 0x33}, c)

	c, err = ParseColor("#00ccff")
	require.NoError(t, err)
	assert.Equal(t, Sky, c)
	assert.Equal(t, "00CCFF", c.String())

	for _, bad := range []string{"", "FFF", "GGGGGG", "#FF00FF00"} {
		_, err := ParseColor(bad)
		assert.Error(t, err, bad)
	}
}

func TestColorFloats(t *testing.T) {
	r, g, b := Orange.Floats()
	assert.Equal(t, 1.0, r)
	assert.InDelta(t, 0.647, g, 0.001)
	assert.Equal(t, 0.0, b)
	assert.Equal(t, int32(0xFFA500), Orange.Hex())
}

func TestParseOrientation(t *testing.T) {
	o, err := ParseOrientation("Horizontal")
	require.NoError(t, err)
	assert.Equal(t, Horizontal, o)

	o, err = ParseOrientation("vertical")
	require.NoError(t, err)
	assert.Equal(t, Vertical, o)

	_, err = ParseOrientation("diagonal")
	assert.Error(t, err)
}

func TestParseAnchor(t *testing.T) {
	a, err := ParseAnchor("100,200")
	require.NoError(t, err)
	assert.Equal(t, Anchor{Edge: EdgeOffset, X: 100, Y: 200}, a)

	a, err = ParseAnchor("bottom")
	require.NoError(t, err)
	assert.Equal(t, Anchor{Edge: EdgeBottom}, a)

	_, err = ParseAnchor("100")
	assert.Error(t, err)
	_, err = ParseAnchor("x,1")
	assert.Error(t, err)
}

func TestDefaultAnchor(t *testing.T) {
	assert.Equal(t, EdgeRight, DefaultAnchor(Vertical).Edge)
	assert.Equal(t, EdgeBottom, DefaultAnchor(Horizontal).Edge)
}
