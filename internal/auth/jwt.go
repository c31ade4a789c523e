package auth

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// Verifier checks tokens minted by the external identity service and
// extracts the verified user id. Token issuance lives entirely outside this
// backend.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// VerifyAndExtract parses the token and returns the subject user id.
func (v *Verifier) VerifyAndExtract(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return v.secret, nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", errors.New("token invalid")
	}

	subject, err := token.Claims.GetSubject()
	if err != nil {
		return "", err
	}
	if subject == "" {
		return "", errors.New("token has no subject")
	}
	return subject, nil
}
