package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrcore/leave-api/internal/models"
	appErrors "github.com/hrcore/leave-api/pkg/errors"
)

func newTestAuthService(secret string, expiry time.Duration) *AuthService {
	return NewAuthService(AuthConfig{Secret: secret, Expiration: expiry, Issuer: "leave-api-test"}, nil)
}

func TestValidateTokenRoundTrip(t *testing.T) {
	svc := newTestAuthService("secret", time.Hour)
	token, err := svc.GenerateToken(&models.JWTClaims{
		EmployeeID:  "emp-1",
		Role:        models.RoleEmployee,
		Position:    models.PositionUnitHeadService,
		DirectionID: "dir-1",
		DivisionID:  "div-1",
		ServiceID:   "svc-1",
	})
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "emp-1", claims.EmployeeID)
	assert.Equal(t, models.RoleEmployee, claims.Role)
	assert.Equal(t, models.PositionUnitHeadService, claims.Position)
	assert.Equal(t, "svc-1", claims.ServiceID)
	assert.Equal(t, "emp-1", claims.Subject)
	assert.Equal(t, "leave-api-test", claims.Issuer)
}

func TestValidateTokenExpired(t *testing.T) {
	svc := newTestAuthService("secret", -time.Minute)
	token, err := svc.GenerateToken(&models.JWTClaims{EmployeeID: "emp-1", Role: models.RoleEmployee})
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized.Code))
}

func TestValidateTokenWrongSecret(t *testing.T) {
	issuer := newTestAuthService("secret-a", time.Hour)
	token, err := issuer.GenerateToken(&models.JWTClaims{EmployeeID: "emp-1", Role: models.RoleEmployee})
	require.NoError(t, err)

	verifier := newTestAuthService("secret-b", time.Hour)
	_, err = verifier.ValidateToken(token)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized.Code))
}
