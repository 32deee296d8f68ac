package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"

	"github.com/scribeworks/backend/internal/models"
	"github.com/scribeworks/backend/internal/services"
)

type contextKey string

const identityKey contextKey = "identity"

// Identity is the verified caller of a request.
type Identity struct {
	AccountID string
	Role      models.Role
}

func (i Identity) IsAdmin() bool { return i.Role == models.RoleAdmin }

// Claims are issued by the external identity/OTP provider.
type Claims struct {
	Role        string `json:"role,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
	jwt.RegisteredClaims
}

// AccountEnsurer creates the account of a verified identity on first use.
type AccountEnsurer interface {
	EnsureAccount(ctx context.Context, accountID string, role models.Role, phoneNumber string) (*models.Account, error)
}

type Authenticator struct {
	secret   []byte
	accounts AccountEnsurer
	log      logrus.FieldLogger
}

func NewAuthenticator(secret string, accounts AccountEnsurer, log logrus.FieldLogger) *Authenticator {
	return &Authenticator{secret: []byte(secret), accounts: accounts, log: log}
}

// Middleware verifies the bearer token and stores the caller's Identity in
// the request context. The role comes from the stored account, so promotions
// apply without a new token.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Get token from Authorization header
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			services.SendErrorResponse(w, "Authorization header required", http.StatusUnauthorized, nil)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			services.SendErrorResponse(w, "Invalid authorization header format", http.StatusUnauthorized, nil)
			return
		}

		claims, err := a.validateToken(parts[1])
		if err != nil {
			a.log.WithError(err).Debug("[AUTH] token rejected")
			services.SendErrorResponse(w, "Invalid token", http.StatusUnauthorized, nil)
			return
		}

		acct, err := a.accounts.EnsureAccount(r.Context(), claims.Subject, models.Role(claims.Role), claims.PhoneNumber)
		if err != nil {
			services.SendError(w, err)
			return
		}

		ctx := WithIdentity(r.Context(), Identity{AccountID: acct.ID, Role: acct.Role})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *Authenticator) validateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("token is not valid")
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}

// RequireAdmin rejects callers that are not admins.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFrom(r.Context())
		if !ok {
			services.SendErrorResponse(w, "Authentication required", http.StatusUnauthorized, nil)
			return
		}
		if !identity.IsAdmin() {
			services.SendErrorResponse(w, "Admin access required", http.StatusForbidden, nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

func IdentityFrom(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityKey).(Identity)
	return identity, ok
}
