package services

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/printshop-os/pricing-engine/config"
	"github.com/printshop-os/pricing-engine/utils"
)

// Token verification error constants
var (
	ErrTokenExpired = errors.New("token has expired")
	ErrTokenInvalid = errors.New("invalid token")
)

// TokenVerifier checks admin bearer tokens minted by the platform's identity
// service. The engine never issues tokens.
type TokenVerifier interface {
	Verify(token string) (*AdminClaims, error)
}

// AdminClaims represents the verified claims of an admin JWT
type AdminClaims struct {
	Subject   string    `json:"sub"`
	TokenID   string    `json:"jti"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TokenVerifierImpl implements TokenVerifier
type TokenVerifierImpl struct {
	publicKey  *rsa.PublicKey
	secretKey  []byte
	useRSAKeys bool
	issuer     string
	audience   string
}

// NewTokenVerifier creates a verifier from the JWT configuration
func NewTokenVerifier(cfg *config.JWTConfig) (TokenVerifier, error) {
	v := &TokenVerifierImpl{
		useRSAKeys: cfg.UseRSAKeys,
		issuer:     cfg.Issuer,
		audience:   cfg.Audience,
	}

	if cfg.UseRSAKeys {
		publicKey, err := parseRSAPublicKey(cfg.PublicKey)
		if err != nil {
			return nil, fmt.Errorf("failed to parse RSA public key: %w", err)
		}
		v.publicKey = publicKey
	} else {
		if cfg.SecretKey == "" {
			return nil, fmt.Errorf("secret key is required when not using RSA keys")
		}
		v.secretKey = []byte(cfg.SecretKey)
	}

	return v, nil
}

// parseRSAPublicKey parses an RSA public key from PEM format
func parseRSAPublicKey(publicKeyPEM string) (*rsa.PublicKey, error) {
	if publicKeyPEM == "" {
		return nil, fmt.Errorf("public key is required")
	}

	block, _ := pem.Decode([]byte(publicKeyPEM))
	if block == nil {
		return nil, fmt.Errorf("failed to decode public key")
	}

	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}

	rsaPublicKey, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("public key is not RSA")
	}

	return rsaPublicKey, nil
}

// Verify validates a token's signature, issuer, audience, and expiry
func (s *TokenVerifierImpl) Verify(token string) (*AdminClaims, error) {
	var err error
	var parsedToken *jwt.Token

	if s.useRSAKeys {
		parsedToken, err = jwt.Parse(token, func(token *jwt.Token) (any, error) {
			// only the RSA family is accepted under key mode
			if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return s.publicKey, nil
		}, jwt.WithIssuer(s.issuer), jwt.WithAudience(s.audience))
	} else {
		parsedToken, err = jwt.Parse(token, func(token *jwt.Token) (any, error) {
			// only the HMAC family is accepted under secret mode
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return s.secretKey, nil
		}, jwt.WithIssuer(s.issuer), jwt.WithAudience(s.audience))
	}

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	if !parsedToken.Valid {
		return nil, ErrTokenInvalid
	}

	claims, ok := parsedToken.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrTokenInvalid
	}

	subject, _ := claims["sub"].(string)
	tokenID, _ := claims["jti"].(string)
	issuedAt, _ := claims["iat"].(float64)

	expiresAt, ok := claims["exp"].(float64)
	if !ok {
		return nil, ErrTokenInvalid
	}
	if utils.UTCNow().After(time.Unix(int64(expiresAt), 0)) {
		return nil, ErrTokenExpired
	}

	return &AdminClaims{
		Subject:   subject,
		TokenID:   tokenID,
		IssuedAt:  time.Unix(int64(issuedAt), 0),
		ExpiresAt: time.Unix(int64(expiresAt), 0),
	}, nil
}

// MockTokenVerifier implements TokenVerifier for testing
type MockTokenVerifier struct {
	Claims *AdminClaims
	Err    error
}

// NewMockTokenVerifier creates a verifier that accepts every token
func NewMockTokenVerifier() *MockTokenVerifier {
	return &MockTokenVerifier{}
}

func (m *MockTokenVerifier) Verify(token string) (*AdminClaims, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Claims != nil {
		return m.Claims, nil
	}
	return &AdminClaims{Subject: "test-admin"}, nil
}
