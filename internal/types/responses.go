package types

import "time"

// BalanceResponse is the payload for the balance read endpoint.
type BalanceResponse struct {
	UserID  string `json:"user_id"`
	Balance int64  `json:"balance"`
}

// CanReviewResponse reports review eligibility for a game.
type CanReviewResponse struct {
	GameID    string `json:"game_id"`
	CanReview bool   `json:"can_review"`
}

// CartResponse joins cart lines with current catalog facts so the
// client can render titles and prices without extra round trips.
type CartResponse struct {
	Items []CartLine `json:"items"`
}

type CartLine struct {
	GameID   string `json:"game_id"`
	Title    string `json:"title"`
	Price    int64  `json:"price"`
	Stock    int    `json:"stock"`
	Quantity int    `json:"quantity"`
}

// BalanceHistoryEntry is a history row joined with order and game
// identity, newest first.
type BalanceHistoryEntry struct {
	EntryID   string    `json:"entry_id"`
	OrderID   string    `json:"order_id"`
	GameID    string    `json:"game_id"`
	GameTitle string    `json:"game_title"`
	Amount    int64     `json:"amount"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
}
