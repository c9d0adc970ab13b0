package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	domainauth "github.com/fleetworks/fleet-operations-backend/internal/domain/auth"
	"github.com/fleetworks/fleet-operations-backend/internal/domain/errors"
)

// Claims is the JWT payload carried by access tokens. Organization and
// department are optional: platform-level principals have neither.
type Claims struct {
	jwt.RegisteredClaims
	Role         string `json:"role"`
	Organization string `json:"org,omitempty"`
	Department   string `json:"dept,omitempty"`
}

// Verifier turns bearer tokens into authenticated principals.
type Verifier struct {
	secret []byte
	expiry time.Duration
}

func NewVerifier(secret string, expiry time.Duration) *Verifier {
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}
	return &Verifier{secret: []byte(secret), expiry: expiry}
}

// IssueToken signs an access token for the principal.
func (v *Verifier) IssueToken(principal domainauth.Principal) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principal.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(v.expiry)),
		},
		Role: principal.Role.String(),
	}
	if principal.OrganizationID != nil {
		claims.Organization = principal.OrganizationID.String()
	}
	if principal.DepartmentID != nil {
		claims.Department = principal.DepartmentID.String()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// VerifyToken parses and validates a token, returning the principal it
// represents. Every failure collapses to an unauthenticated error so the
// response does not leak which check failed.
func (v *Verifier) VerifyToken(tokenString string) (domainauth.Principal, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return domainauth.Principal{}, errors.NewUnauthenticatedError()
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return domainauth.Principal{}, errors.NewUnauthenticatedError()
	}
	role, err := domainauth.ParseRole(claims.Role)
	if err != nil {
		return domainauth.Principal{}, errors.NewUnauthenticatedError()
	}

	principal := domainauth.Principal{UserID: userID, Role: role}

	if claims.Organization != "" {
		orgID, err := uuid.Parse(claims.Organization)
		if err != nil {
			return domainauth.Principal{}, errors.NewUnauthenticatedError()
		}
		principal.OrganizationID = &orgID
	}
	if claims.Department != "" {
		deptID, err := uuid.Parse(claims.Department)
		if err != nil {
			return domainauth.Principal{}, errors.NewUnauthenticatedError()
		}
		principal.DepartmentID = &deptID
	}

	return principal, nil
}
