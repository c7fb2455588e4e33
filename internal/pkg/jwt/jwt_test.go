package jwt

import (
	"context"
	"testing"
	"time"

	"github.com/cmlabs-hris/hris-payroll-engine/internal/domain/user"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAccessToken(t *testing.T) {
	svc, err := NewJWTService("secret", "15m")
	require.NoError(t, err)

	companyID := "company-1"
	token, expiresAt, err := svc.GenerateAccessToken("user-1", "owner@example.com", nil, &companyID, user.RoleOwner)
	require.NoError(t, err)
	assert.InDelta(t, time.Now().Add(15*time.Minute).Unix(), expiresAt, 5)

	decoded, err := svc.JWTAuth().Decode(token)
	require.NoError(t, err)
	claims, err := decoded.AsMap(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "company-1", claims["company_id"])
	assert.Equal(t, "owner", claims["role"])
	assert.Equal(t, "access", claims["type"])
	assert.Nil(t, claims["employee_id"])
}

func TestNewJWTService_InvalidExpiration(t *testing.T) {
	_, err := NewJWTService("secret", "soon")
	assert.Error(t, err)
}
