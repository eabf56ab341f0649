package model

import "time"

// TradeCode is a short-lived shared secret bound to the account that issued
// it. Whoever executes a trade with it first becomes the sender.
type TradeCode struct {
	Code      string    `json:"code"`
	AccountID string    `json:"account_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Expired reports whether the code is no longer valid at now. Stores evict
// expired codes lazily, so existence alone never implies validity.
func (c *TradeCode) Expired(now time.Time) bool {
	return !c.ExpiresAt.After(now)
}

// Transfer is an append-only ledger record of one unit moved by a trade.
type Transfer struct {
	ID            string    `json:"id"`
	SiteID        string    `json:"site_id"`
	FromAccountID string    `json:"from_account_id"`
	ToAccountID   string    `json:"to_account_id"`
	Code          string    `json:"code"`
	TransferredAt time.Time `json:"transferred_at"`
}
