package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusConstants(t *testing.T) {
	assert.Equal(t, Status("draft"), StatusDraft)
	assert.Equal(t, Status("ready"), StatusReady)
	assert.Equal(t, Status("in_progress"), StatusInProgress)
	assert.Equal(t, Status("active"), StatusActive)
	assert.Equal(t, Status("active_with_errors"), StatusActiveWithErrors)
	assert.Equal(t, Status("deactivate"), StatusDeactivate)
	assert.Equal(t, Status("deactivating"), StatusDeactivating)
	assert.Equal(t, Status("reprovision"), StatusReprovision)
	assert.Equal(t, Status("complete"), StatusComplete)
	assert.Equal(t, Status("error"), StatusError)
}

func TestStatus_Valid(t *testing.T) {
	for _, s := range AllStatuses {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, Status("pending").Valid())
	assert.False(t, Status("").Valid())
}

func TestStatus_IsTerminal(t *testing.T) {
	terminal := map[Status]bool{
		StatusActive:           true,
		StatusComplete:         true,
		StatusActiveWithErrors: true,
		StatusError:            true,
	}
	for _, s := range AllStatuses {
		assert.Equal(t, terminal[s], s.IsTerminal(), s)
	}
}

func TestStatus_IsError(t *testing.T) {
	assert.True(t, StatusError.IsError())
	assert.True(t, Status("error_provisioning").IsError())
	assert.False(t, StatusActiveWithErrors.IsError())
	assert.False(t, StatusActive.IsError())
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus("deactivating")
	require.NoError(t, err)
	assert.Equal(t, StatusDeactivating, s)

	_, err = ParseStatus("bogus")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown status")
}
