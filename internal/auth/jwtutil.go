package auth

import (
    "crypto/hmac"
    "crypto/sha256"
    "encoding/base64"
    "encoding/json"
    "errors"
    "strings"
    "time"
)

var (
    ErrInvalidToken = errors.New("invalid token")
    ErrTokenExpired = errors.New("token expired")

    b64 = base64.RawURLEncoding
)

// Claims carried by access tokens.
type Claims struct {
    UserID    string `json:"user_id"`
    Email     string `json:"email"`
    Role      string `json:"role"`
    Version   int    `json:"ver"`
    IssuedAt  int64  `json:"iat"`
    ExpiresAt int64  `json:"exp"`
}

// SignHS256 creates a compact JWT string using HS256.
func SignHS256(claims Claims, secret []byte) (string, error) {
    h, err := json.Marshal(map[string]string{"alg": "HS256", "typ": "JWT"})
    if err != nil {
        return "", err
    }
    c, err := json.Marshal(claims)
    if err != nil {
        return "", err
    }
    unsigned := b64.EncodeToString(h) + "." + b64.EncodeToString(c)
    return unsigned + "." + b64.EncodeToString(mac(unsigned, secret)), nil
}

// ParseAndVerifyHS256 verifies the token signature and expiry and returns its claims.
func ParseAndVerifyHS256(token string, secret []byte, now time.Time) (Claims, error) {
    parts := strings.Split(token, ".")
    if len(parts) != 3 {
        return Claims{}, ErrInvalidToken
    }
    var header struct {
        Alg string `json:"alg"`
    }
    rawHeader, err := b64.DecodeString(parts[0])
    if err != nil || json.Unmarshal(rawHeader, &header) != nil || header.Alg != "HS256" {
        return Claims{}, ErrInvalidToken
    }
    sig, err := b64.DecodeString(parts[2])
    if err != nil || !hmac.Equal(sig, mac(parts[0]+"."+parts[1], secret)) {
        return Claims{}, ErrInvalidToken
    }
    payload, err := b64.DecodeString(parts[1])
    if err != nil {
        return Claims{}, ErrInvalidToken
    }
    var claims Claims
    if err := json.Unmarshal(payload, &claims); err != nil || claims.UserID == "" {
        return Claims{}, ErrInvalidToken
    }
    if claims.ExpiresAt != 0 && now.Unix() >= claims.ExpiresAt {
        return Claims{}, ErrTokenExpired
    }
    return claims, nil
}

func mac(unsigned string, secret []byte) []byte {
    m := hmac.New(sha256.New, secret)
    m.Write([]byte(unsigned))
    return m.Sum(nil)
}
