package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomie_server/models"
)

func ptr(f float64) *float64 { return &f }

func TestValidate_Profile(t *testing.T) {
	v := New()

	ok := &models.UserProfile{UserID: "u1", Name: "Ana", Role: models.RoleHunter, Latitude: ptr(52.5), Longitude: ptr(13.4)}
	assert.NoError(t, v.Validate(ok))

	bad := &models.UserProfile{UserID: "u2", Role: "landlord", Phone: "12345", Latitude: ptr(123)}
	err := v.Validate(bad)
	require.Error(t, err)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Errors, "name")
	assert.Contains(t, verr.Errors, "role")
	assert.Contains(t, verr.Errors, "phone")
	assert.Contains(t, verr.Errors, "lat")
}

func TestVar_Phone(t *testing.T) {
	v := New()
	assert.NoError(t, v.Var("+4915112345678", "e164"))
	assert.Error(t, v.Var("0151 123", "e164"))
}
