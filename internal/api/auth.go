package api

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// ScopeOps grants access to the operational endpoints (outbox inspection and
// aggregate stats).
const ScopeOps = "ops"

// AuthManager validates credentials for the operational endpoints. Keys are
// configured at startup and held as SHA-256 hashes.
type AuthManager struct {
	keyHashes map[string]struct{}
	jwtSecret []byte
}

// JWTClaims represents JWT claims
type JWTClaims struct {
	jwt.RegisteredClaims
	Scope string `json:"scope"`
}

// NewAuthManager creates an authentication manager from the configured API
// keys and JWT secret.
func NewAuthManager(apiKeys []string, jwtSecret string) *AuthManager {
	secret := []byte(jwtSecret)
	if len(secret) == 0 {
		// Generate random secret if none provided
		secret = make([]byte, 32)
		rand.Read(secret)
	}

	am := &AuthManager{
		keyHashes: make(map[string]struct{}, len(apiKeys)),
		jwtSecret: secret,
	}
	for _, key := range apiKeys {
		if key != "" {
			am.keyHashes[HashAPIKey(key)] = struct{}{}
		}
	}

	return am
}

// ValidateAPIKey validates an API key
func (am *AuthManager) ValidateAPIKey(key string) error {
	if _, ok := am.keyHashes[HashAPIKey(key)]; !ok {
		return fmt.Errorf("invalid API key")
	}
	return nil
}

// GenerateJWT generates a token carrying the ops scope for the given subject.
func (am *AuthManager) GenerateJWT(subject string, duration time.Duration) (string, error) {
	claims := JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(duration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "capture-api",
		},
		Scope: ScopeOps,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(am.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// ValidateJWT validates a JWT token
func (am *AuthManager) ValidateJWT(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return am.jwtSecret, nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, fmt.Errorf("invalid token")
}

// RequireOps creates a middleware that only admits requests carrying a
// configured X-API-Key or a Bearer token with the ops scope.
func RequireOps(authManager *AuthManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check for API key in header
		if apiKey := c.GetHeader("X-API-Key"); apiKey != "" {
			if err := authManager.ValidateAPIKey(apiKey); err != nil {
				c.JSON(http.StatusUnauthorized, gin.H{
					"error":   "invalid_api_key",
					"message": err.Error(),
				})
				c.Abort()
				return
			}

			c.Set("auth_subject", "api_key")
			c.Next()
			return
		}

		// Check for JWT token in Authorization header
		if authHeader := c.GetHeader("Authorization"); authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				c.JSON(http.StatusUnauthorized, gin.H{
					"error":   "invalid_auth_header",
					"message": "Authorization header must be in format: Bearer <token>",
				})
				c.Abort()
				return
			}

			claims, err := authManager.ValidateJWT(parts[1])
			if err != nil {
				c.JSON(http.StatusUnauthorized, gin.H{
					"error":   "invalid_token",
					"message": err.Error(),
				})
				c.Abort()
				return
			}

			if claims.Scope != ScopeOps {
				c.JSON(http.StatusForbidden, gin.H{
					"error":   "permission_denied",
					"message": fmt.Sprintf("Scope '%s' is required", ScopeOps),
				})
				c.Abort()
				return
			}

			c.Set("auth_subject", claims.Subject)
			c.Next()
			return
		}

		c.JSON(http.StatusUnauthorized, gin.H{
			"error":   "authentication_required",
			"message": "Provide an X-API-Key header or a Bearer token",
		})
		c.Abort()
	}
}

// HashAPIKey creates a secure hash of an API key for storage
func HashAPIKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}
