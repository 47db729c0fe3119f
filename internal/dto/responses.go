package dto

// ErrorResponse — унифицированный ответ с ошибкой.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// BalanceResponse — текущий баланс пользователя.
type BalanceResponse struct {
	Balance float64 `json:"balance"`
}
