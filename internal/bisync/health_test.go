package bisync

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckAccessMatchingSentinel(t *testing.T) {
	d, _, opt := newHarness(t)
	d.trees[localRoot]["RCLONE_TEST"] = Entry{Path: "RCLONE_TEST", Size: 0, MTime: t1}
	d.trees[remoteRoot]["RCLONE_TEST"] = Entry{Path: "RCLONE_TEST", Size: 0, MTime: t1}

	err := CheckAccess(context.Background(), d, opt.LocalRoot, opt.RemoteRoot, opt.CheckFilename)
	assert.NoError(t, err)
}

func TestCheckAccessMissingOnOneSide(t *testing.T) {
	d, _, opt := newHarness(t)
	d.trees[localRoot]["RCLONE_TEST"] = Entry{Path: "RCLONE_TEST", Size: 0, MTime: t1}
	// remote side has no sentinel file

	err := CheckAccess(context.Background(), d, opt.LocalRoot, opt.RemoteRoot, opt.CheckFilename)
	assert.Error(t, err)
	assert.Equal(t, SevCritical, SeverityOf(err))
}

func TestCheckAccessListFailure(t *testing.T) {
	d, _, opt := newHarness(t)
	d.fail["list"] = true

	err := CheckAccess(context.Background(), d, opt.LocalRoot, opt.RemoteRoot, opt.CheckFilename)
	assert.Error(t, err)
	assert.Equal(t, SevCritical, SeverityOf(err))
}
