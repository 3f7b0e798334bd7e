package core

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	temporalmocks "go.temporal.io/sdk/mocks"
)

func TestNewServices(t *testing.T) {
	db := &mockDB{}
	tc := &temporalmocks.Client{}

	svcs := NewServices(db, tc, zerolog.Nop())

	require.NotNil(t, svcs)
	assert.NotNil(t, svcs.Provision)
	assert.NotNil(t, svcs.Instance)
	assert.Equal(t, tc, svcs.Provision.tc)
}
