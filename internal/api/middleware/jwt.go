package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/linskybing/chainjob-cache/pkg/response"
)

// Claims identifies an operator allowed to call admin routes.
type Claims struct {
	Admin bool `json:"admin"`
	jwt.RegisteredClaims
}

// JWT issues and checks HS256 tokens for admin routes.
type JWT struct {
	key    []byte
	issuer string
}

func NewJWT(secret, issuer string) *JWT {
	return &JWT{key: []byte(secret), issuer: issuer}
}

// GenerateToken issues a signed admin token, for operators and tests.
func (j *JWT) GenerateToken(subject string, expireDuration time.Duration) (string, error) {
	claims := &Claims{
		Admin: true,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expireDuration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    j.issuer,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.key)
}

// ParseToken validates and extracts claims.
func (j *JWT) ParseToken(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return j.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(j.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// Admin validates the Bearer token and requires the admin claim.
func (j *JWT) Admin() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.ErrorResponse{Error: "Authorization header format must be Bearer {token}"})
			return
		}

		claims, err := j.ParseToken(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.ErrorResponse{Error: "Invalid token", Details: err.Error()})
			return
		}
		if !claims.Admin {
			c.AbortWithStatusJSON(http.StatusForbidden, response.ErrorResponse{Error: "admin only"})
			return
		}

		c.Set("claims", claims)
		c.Next()
	}
}
