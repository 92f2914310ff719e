package handlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Issuer издатель токенов ревьюеров
const Issuer = "gophsync"

// contextKey тип для ключей контекста
type contextKey string

// ReviewerKey ключ для хранения имени ревьюера в контексте
const ReviewerKey contextKey = "reviewer"

// ErrEmptyReviewer токен без субъекта
var ErrEmptyReviewer = errors.New("reviewer is empty")

// ReviewerClaims JWT claims ревьюера; имя ревьюера хранится в Subject.
type ReviewerClaims struct {
	jwt.RegisteredClaims
}

// JWTConfig содержит конфигурацию для JWT
type JWTConfig struct {
	Secret         []byte
	AccessTokenTTL time.Duration
}

// WithReviewer кладет имя ревьюера в контекст
func WithReviewer(ctx context.Context, reviewer string) context.Context {
	return context.WithValue(ctx, ReviewerKey, reviewer)
}

// GetReviewer извлекает имя ревьюера из контекста запроса
func GetReviewer(ctx context.Context) (string, bool) {
	reviewer, ok := ctx.Value(ReviewerKey).(string)
	return reviewer, ok && reviewer != ""
}

// GenerateAccessToken создает JWT access token для ревьюера.
// Возвращает токен и время жизни в секундах.
func GenerateAccessToken(cfg JWTConfig, reviewer string) (string, int64, error) {
	if reviewer == "" {
		return "", 0, ErrEmptyReviewer
	}

	now := time.Now()
	claims := ReviewerClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   reviewer,
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.AccessTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    Issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(cfg.Secret)
	if err != nil {
		return "", 0, fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, int64(cfg.AccessTokenTTL.Seconds()), nil
}

// ValidateAccessToken валидирует и парсит JWT access token
func ValidateAccessToken(cfg JWTConfig, tokenString string) (*ReviewerClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &ReviewerClaims{}, func(token *jwt.Token) (any, error) {
		// Проверяем что используется правильный алгоритм подписи
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return cfg.Secret, nil
	}, jwt.WithIssuer(Issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*ReviewerClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.Subject == "" {
		return nil, ErrEmptyReviewer
	}
	return claims, nil
}
