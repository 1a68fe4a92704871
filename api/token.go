package api

import (
	"net/http"
	"time"

	jwtmiddleware "github.com/auth0/go-jwt-middleware"
	"github.com/dgrijalva/jwt-go"
)

type token struct {
	signingKey []byte
	middleware *jwtmiddleware.JWTMiddleware
}

func newToken(signingKey string) *token {
	key := []byte(signingKey)
	return &token{
		signingKey: key,
		middleware: jwtmiddleware.New(jwtmiddleware.Options{
			ValidationKeyGetter: func(token *jwt.Token) (interface{}, error) {
				return key, nil
			},
			SigningMethod: jwt.SigningMethodHS256,
		}),
	}
}

// getTokenHandler issues a short-lived token for the web client session.
func (t *token) getTokenHandler(w http.ResponseWriter, r *http.Request) {
	tok := jwt.New(jwt.SigningMethodHS256)

	claims := tok.Claims.(jwt.MapClaims)
	claims["exp"] = time.Now().Add(time.Hour * 24).Unix()

	signed, err := tok.SignedString(t.signingKey)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if _, err := w.Write([]byte(signed)); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (t *token) validator(next http.HandlerFunc, name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := t.middleware.CheckJWT(w, r); err != nil {
			return
		}
		next(w, r)
	}
}
