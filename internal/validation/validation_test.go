package validation

import (
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestViolations(t *testing.T) {
	v := Violations{}
	require.NoError(t, v.Err())

	v.Required("name", "  ")
	v.Required("email", "a@b.c")
	v.MaxLen("email", "toolong", 3)
	v.Add("name", "ignored")

	err := v.Err()
	require.Error(t, err)

	var verr *Error
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "required", verr.Violations["name"])
	assert.Equal(t, "too_long", verr.Violations["email"])
	assert.Equal(t, "invalid request: email too_long, name required", err.Error())
}
