package upbit

import (
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"net/url"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// queryHash canonicalizes the request parameters and returns the SHA-512 hex
// digest the exchange expects inside the signed claim set.
//
// The canonical form is the URL-encoded query string with every percent
// escape decoded again. The exchange recomputes the digest server-side from
// the same double transform, so it has to be reproduced exactly; PathUnescape
// is used because only %XX escapes may be decoded, '+' must stay literal.
func queryHash(params url.Values) (string, error) {
	decoded, err := url.PathUnescape(params.Encode())
	if err != nil {
		return "", fmt.Errorf("failed to canonicalize query: %w", err)
	}

	sum := sha512.Sum512([]byte(decoded))
	return hex.EncodeToString(sum[:]), nil
}

// authToken builds the signed bearer token for an authenticated call:
// a JWT (HS256, keyed with the secret key) over {access_key, nonce} plus,
// when the call carries parameters, {query_hash, query_hash_alg}.
func authToken(accessKey, secretKey string, params url.Values) (string, error) {
	claims := jwt.MapClaims{
		"access_key": accessKey,
		"nonce":      uuid.NewString(),
	}

	if len(params) > 0 {
		hash, err := queryHash(params)
		if err != nil {
			return "", err
		}
		claims["query_hash"] = hash
		claims["query_hash_alg"] = "SHA512"
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secretKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign request: %w", err)
	}
	return token, nil
}
