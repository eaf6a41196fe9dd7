package deadline

import (
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestWebserviceError(t *testing.T) {
	cause := errors.New("connection refused")
	err := &WebserviceError{Endpoint: "http://farm/api/pools", Err: cause}

	assert.Contains(t, err.Error(), "http://farm/api/pools")
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, cause, err.Cause())
	assert.Contains(t, (&WebserviceError{Endpoint: "http://farm"}).Error(), "http://farm")

	assert.True(t, IsWebserviceError(err))
	assert.True(t, IsWebserviceError(errors.Wrap(err, "listing pools")))
	assert.True(t, IsWebserviceError(fmt.Errorf("listing pools: %w", err)))
	assert.False(t, IsWebserviceError(cause))
	assert.False(t, IsWebserviceError(nil))
}
