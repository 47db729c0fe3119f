package dto

// RegisterRequest — запрос регистрации.
type RegisterRequest struct {
	Email    string `json:"email" binding:"required"`
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role"`
}

// LoginRequest — запрос входа.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest — запрос обновления токенов.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// DepositRequest — запрос пополнения баланса.
type DepositRequest struct {
	Amount float64 `json:"amount" binding:"required"`
}

// CreateTransactionRequest — запрос создания сделки.
type CreateTransactionRequest struct {
	Title       string  `json:"title" binding:"required"`
	Description string  `json:"description" binding:"required"`
	Amount      float64 `json:"amount" binding:"required"`
	BuyerID     string  `json:"buyer_id" binding:"required"`
	SellerID    string  `json:"seller_id" binding:"required"`
}

// RaiseDisputeRequest — запрос открытия спора.
type RaiseDisputeRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// ResolveDisputeRequest — решение администратора по спору.
type ResolveDisputeRequest struct {
	Winner     string `json:"winner" binding:"required"`
	Resolution string `json:"resolution" binding:"required"`
}

// SubmitReviewRequest — запрос создания отзыва.
type SubmitReviewRequest struct {
	Rating  int    `json:"rating" binding:"required"`
	Comment string `json:"comment"`
}
