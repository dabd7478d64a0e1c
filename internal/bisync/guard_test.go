package bisync

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExcessDeletionGuard(t *testing.T) {
	// 6/10 = 60% > default 50%, no force -> trips.
	err := excessDeletionGuard("local", 6, 10, DefaultMaxDelete, false)
	assert.Error(t, err)
	assert.Equal(t, SevAbort, SeverityOf(err))

	// Same ratio, force set -> passes.
	err = excessDeletionGuard("local", 6, 10, DefaultMaxDelete, true)
	assert.NoError(t, err)

	// Below the threshold -> passes.
	err = excessDeletionGuard("local", 4, 10, DefaultMaxDelete, false)
	assert.NoError(t, err)

	// Empty prior listing is defined as "no guard triggered".
	err = excessDeletionGuard("local", 0, 0, DefaultMaxDelete, false)
	assert.NoError(t, err)
}
