package comms

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/dgrijalva/jwt-go"
	"github.com/go-chi/render"
)

type ctxKey string

const jwtCtxKey ctxKey = "jwt"

var (
	ErrTokenMissing = errors.New("bearer token not provided")
	ErrTokenExpired = errors.New("token has expired")
	ErrTokenInvalid = errors.New("invalid token")
)

// ValidateJWT returns middleware that requires an HMAC signed token, taken
// from the jwt query parameter or an Authorization bearer header.
func ValidateJWT(secret []byte) func(http.Handler) http.Handler {
	keyFunc := func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := tokenFromRequest(r)
			if tokenStr == "" {
				render.Render(w, r, ErrUnauthorized(ErrTokenMissing))
				return
			}

			token, err := jwt.ParseWithClaims(tokenStr, &jwt.StandardClaims{}, keyFunc)
			if err != nil {
				reason := ErrTokenInvalid
				var verr *jwt.ValidationError
				if errors.As(err, &verr) && verr.Errors&jwt.ValidationErrorExpired != 0 {
					reason = ErrTokenExpired
				}
				render.Render(w, r, ErrUnauthorized(reason))
				return
			}
			if !token.Valid {
				render.Render(w, r, ErrUnauthorized(ErrTokenInvalid))
				return
			}

			ctx := context.WithValue(r.Context(), jwtCtxKey, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func tokenFromRequest(r *http.Request) string {
	if tok := r.URL.Query().Get("jwt"); tok != "" {
		return tok
	}
	bearer := r.Header.Get("Authorization")
	if len(bearer) > 7 && strings.EqualFold(bearer[:7], "bearer ") {
		return strings.TrimSpace(bearer[7:])
	}
	return ""
}
