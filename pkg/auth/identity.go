package auth

import (
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// passwordSalt is appended to username+password before hashing, as
// required by the legacy identity service.
const passwordSalt = "oZ7QE6LcLJp6fiWzdqZc"

// Production endpoints. Overridable in Config for tests.
const (
	DefaultIdentityURL      = "https://vera-us-oem-autha11.mios.com"
	DefaultTokenExchangeURL = "https://cloud.ezlo.com/mca-router/token/exchange/legacy-to-cloud/"
	DefaultCloudRequestURL  = "https://api-cloud.ezlo.com/v1/request"
)

// hashPassword produces the SHA1Password query parameter.
func hashPassword(username, password string) string {
	sum := sha1.Sum([]byte(username + password + passwordSalt))
	return hex.EncodeToString(sum[:])
}

// Identity is the credential blob issued by the legacy identity
// service. Token and Signature travel as the MMSAuth and MMSAuthSig
// headers on subsequent cloud calls.
type Identity struct {
	// Token is the base64 identity blob.
	Token string `json:"Identity"`

	// Signature authenticates the blob.
	Signature string `json:"IdentitySignature"`

	// ServerAccount is the account server host for device lookups.
	ServerAccount string `json:"Server_Account"`

	// Expires is decoded from inside the blob.
	Expires time.Time `json:"-"`
}

// identityClaims is the decoded interior of the Token blob. Only the
// expiry matters to this client.
type identityClaims struct {
	Expires int64 `json:"Expires"`
}

// decodeExpiry parses the base64 token payload and fills in Expires.
func (id *Identity) decodeExpiry() error {
	raw, err := base64.StdEncoding.DecodeString(id.Token)
	if err != nil {
		return fmt.Errorf("identity blob is not base64: %w", err)
	}
	var claims identityClaims
	if err := json.Unmarshal(raw, &claims); err != nil {
		return fmt.Errorf("identity blob is not JSON: %w", err)
	}
	if claims.Expires == 0 {
		return fmt.Errorf("identity blob has no expiry")
	}
	id.Expires = time.Unix(claims.Expires, 0)
	return nil
}

// Valid reports whether the identity is usable at the given instant,
// with a safety margin so a token is not presented moments before it
// expires.
func (id *Identity) Valid(now time.Time) bool {
	return id != nil && now.Add(time.Minute).Before(id.Expires)
}
