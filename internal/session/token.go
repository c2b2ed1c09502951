package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenExpired はトークンがJWTとして読めて、expが現在時刻より前の場合にtrueを返す。
// 署名は検証しない。JWTでないトークンやexpを持たないトークンは常に有効とみなす。
func tokenExpired(token string, now time.Time) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Before(now)
}
