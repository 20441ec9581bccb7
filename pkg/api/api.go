// Package api holds the wire types of the gophcache backend shared by the
// server and the client.
package api

// ErrorResponse представляет ответ с ошибкой
type ErrorResponse struct {
	Error   string `json:"error"`             // описание ошибки
	Message string `json:"message,omitempty"` // дополнительное сообщение
}

// HealthResponse представляет ответ health check
type HealthResponse struct {
	Status  string `json:"status"`
	Storage string `json:"storage,omitempty"`
	Version string `json:"version,omitempty"`
}

// DeleteResponse представляет ответ на удаление
type DeleteResponse struct {
	Deleted int `json:"deleted"` // количество удаленных сущностей
}

// TokenResponse представляет выданный access token
type TokenResponse struct {
	AccessToken string `json:"access_token"` // JWT access token
	ExpiresIn   int64  `json:"expires_in"`   // время жизни access token в секундах
}
