package jwt

import (
	"fmt"
	"time"

	"github.com/cmlabs-hris/hris-payroll-engine/internal/domain/user"
	"github.com/go-chi/jwtauth/v5"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

type Service interface {
	GenerateAccessToken(userID string, email string, employeeID *string, companyID *string, role user.Role) (token string, expiresAt int64, err error)
	JWTAuth() *jwtauth.JWTAuth
}

type JWTService struct {
	accessTokenExpiration time.Duration
	tokenAuth             *jwtauth.JWTAuth
}

func (j *JWTService) JWTAuth() *jwtauth.JWTAuth {
	return j.tokenAuth
}

// NewJWTService verifies HS256 tokens issued by the HRIS auth service; the
// secret is shared with it.
func NewJWTService(secretKey string, accessTokenExpirationTime string) (Service, error) {
	expiration, err := time.ParseDuration(accessTokenExpirationTime)
	if err != nil {
		return nil, fmt.Errorf("invalid access token expiration %q: %w", accessTokenExpirationTime, err)
	}
	return &JWTService{
		accessTokenExpiration: expiration,
		tokenAuth:             jwtauth.New("HS256", []byte(secretKey), nil, jwt.WithAcceptableSkew(30*time.Second)),
	}, nil
}

func (j *JWTService) GenerateAccessToken(userID string, email string, employeeID *string, companyID *string, role user.Role) (token string, expiresAt int64, err error) {
	expiresAt = time.Now().Add(j.accessTokenExpiration).Unix()

	claims := map[string]interface{}{
		"user_id":     userID,
		"email":       email,
		"employee_id": valueOrNil(employeeID),
		"company_id":  valueOrNil(companyID),
		"role":        string(role),
		"type":        "access",
		"exp":         expiresAt,
	}

	_, tokenString, err := j.tokenAuth.Encode(claims)
	return tokenString, expiresAt, err
}

func valueOrNil(value *string) interface{} {
	if value == nil {
		return nil
	}
	return *value
}
