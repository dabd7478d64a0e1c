package bisync

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithDefaultsAppliesMaxDeleteOnlyWhenNegative(t *testing.T) {
	unset := Options{MaxDelete: -1}.WithDefaults()
	assert.Equal(t, DefaultMaxDelete, unset.MaxDelete)

	explicitZero := Options{MaxDelete: 0}.WithDefaults()
	assert.Equal(t, 0, explicitZero.MaxDelete, "--max-delete=0 must survive WithDefaults unchanged")

	explicit := Options{MaxDelete: 10}.WithDefaults()
	assert.Equal(t, 10, explicit.MaxDelete)
}

func TestWithDefaultsAppliesCheckFilename(t *testing.T) {
	opt := Options{}.WithDefaults()
	assert.Equal(t, DefaultCheckFilename, opt.CheckFilename)
}
