package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRootCmdRequiresTwoArgs(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"onlyone"})
	err := cmd.Execute()
	assert.Error(t, err)
}

func TestRootCmdFlagDefaults(t *testing.T) {
	cmd := newRootCmd()
	f := cmd.Flags()

	maxDelete, err := f.GetInt("max-delete")
	assert.NoError(t, err)
	assert.Equal(t, -1, maxDelete, "unset sentinel; resolved to bisync.DefaultMaxDelete by Options.WithDefaults")

	checkFilename, err := f.GetString("check-filename")
	assert.NoError(t, err)
	assert.Equal(t, "RCLONE_TEST", checkFilename)
}
