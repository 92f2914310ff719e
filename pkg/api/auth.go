package api

// TokenResponse токен доступа ревьюера
type TokenResponse struct {
	AccessToken string `json:"access_token"` // JWT access token
	Reviewer    string `json:"reviewer"`
	ExpiresIn   int64  `json:"expires_in"` // время жизни в секундах
}
