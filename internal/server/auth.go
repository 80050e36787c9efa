package server

import (
	"strings"
	"time"

	"taskapi/internal/domain/errors"
	"taskapi/internal/domain/models"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// Context keys under which the access gate stores verified identity.
const (
	ctxUserIDKey = "auth_user_id"
	ctxEmailKey  = "auth_email"
)

// Claims is the verified identity carried by a bearer token.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

func (api *TaskAPI) issueToken(user *models.User) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: user.ID,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(api.tokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(api.jwtSecret))
}

// verifyToken checks signature and expiration. Every failure mode collapses
// into ErrInvalidToken so the boundary answers 401 uniformly.
func (api *TaskAPI) verifyToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.ErrInvalidToken
		}
		return []byte(api.jwtSecret), nil
	})
	if err != nil || !token.Valid || claims.UserID == "" {
		return nil, errors.ErrInvalidToken
	}
	return claims, nil
}

// requireAuth gates every protected route. It never touches the store; on
// success the verified claims are attached to the gin context.
func (api *TaskAPI) requireAuth() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		header := ctx.GetHeader("Authorization")
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			abortWithError(ctx, errors.ErrInvalidToken)
			return
		}

		claims, err := api.verifyToken(parts[1])
		if err != nil {
			abortWithError(ctx, errors.ErrInvalidToken)
			return
		}

		ctx.Set(ctxUserIDKey, claims.UserID)
		ctx.Set(ctxEmailKey, claims.Email)
		ctx.Next()
	}
}

func hashPassword(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// checkPassword never reports why a comparison failed.
func checkPassword(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}
