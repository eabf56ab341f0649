package model

import (
	"slices"
	"time"
)

// Trade event directions.
const (
	TradeSent     = "sent"
	TradeReceived = "received"
)

// TradeEvent records one transfer touching an inventory entry.
type TradeEvent struct {
	CounterpartyID string    `json:"counterparty_id"`
	Type           string    `json:"type"`
	Date           time.Time `json:"date"`
}

// InventoryEntry is a caught site with a positive unit count.
type InventoryEntry struct {
	SiteID       string       `json:"site_id"`
	Count        int          `json:"count"`
	CaughtAt     time.Time    `json:"caught_at"`
	TradeHistory []TradeEvent `json:"trade_history"`
}

// Account is a registered user and everything the user owns.
//
// Version is bumped by the store on every successful save and is used for
// compare-and-swap updates. LocationVersion counts location writes; the
// visited set always belongs to the current LocationVersion.
type Account struct {
	ID              string           `json:"id"`
	Name            string           `json:"name"`
	Email           string           `json:"email"`
	PasswordHash    string           `json:"-"`
	Location        *Point           `json:"current_location"`
	LocationVersion int64            `json:"location_version"`
	Favorites       []string         `json:"favorites"`
	VisitedSites    []string         `json:"visited_sites"`
	Inventory       []InventoryEntry `json:"inventory"`
	Version         int64            `json:"-"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// SetLocation stores a new current location. The visited set is emptied in
// the same step: collected sites are only meaningful near the location they
// were collected from.
func (a *Account) SetLocation(p Point) {
	a.Location = &p
	a.LocationVersion++
	a.VisitedSites = []string{}
}

// HasVisited reports whether siteID is in the visited set.
func (a *Account) HasVisited(siteID string) bool {
	return slices.Contains(a.VisitedSites, siteID)
}

// AddVisited appends the ids not yet visited, preserving their order, and
// returns the ids actually added.
func (a *Account) AddVisited(siteIDs []string) []string {
	var added []string
	for _, id := range siteIDs {
		if a.HasVisited(id) || slices.Contains(added, id) {
			continue
		}
		added = append(added, id)
	}
	a.VisitedSites = append(a.VisitedSites, added...)
	return added
}

// HasFavorite reports whether siteID is a favorite.
func (a *Account) HasFavorite(siteID string) bool {
	return slices.Contains(a.Favorites, siteID)
}

// AddFavorite adds siteID to the favorites set. Returns false if it was
// already present.
func (a *Account) AddFavorite(siteID string) bool {
	if a.HasFavorite(siteID) {
		return false
	}
	a.Favorites = append(a.Favorites, siteID)
	return true
}

// RemoveFavorite removes siteID from the favorites set. Returns false if it
// was not present.
func (a *Account) RemoveFavorite(siteID string) bool {
	i := slices.Index(a.Favorites, siteID)
	if i < 0 {
		return false
	}
	a.Favorites = slices.Delete(a.Favorites, i, i+1)
	return true
}

// Entry returns the inventory entry for siteID, or nil.
func (a *Account) Entry(siteID string) *InventoryEntry {
	for i := range a.Inventory {
		if a.Inventory[i].SiteID == siteID {
			return &a.Inventory[i]
		}
	}
	return nil
}

// Catch adds one unit of siteID to the inventory.
func (a *Account) Catch(siteID string, now time.Time) {
	if e := a.Entry(siteID); e != nil {
		e.Count++
		return
	}
	a.Inventory = append(a.Inventory, InventoryEntry{
		SiteID:       siteID,
		Count:        1,
		CaughtAt:     now,
		TradeHistory: []TradeEvent{},
	})
}

// Debit removes one unit of siteID sent to account to. The sent event is
// appended before the entry is dropped, so an entry reaching zero takes its
// nested history with it; the transfer ledger keeps the provenance.
func (a *Account) Debit(siteID, to string, now time.Time) error {
	i := slices.IndexFunc(a.Inventory, func(e InventoryEntry) bool { return e.SiteID == siteID })
	if i < 0 || a.Inventory[i].Count < 1 {
		return ErrInsufficientInventory
	}

	e := &a.Inventory[i]
	e.TradeHistory = append(e.TradeHistory, TradeEvent{CounterpartyID: to, Type: TradeSent, Date: now})
	e.Count--
	if e.Count == 0 {
		a.Inventory = slices.Delete(a.Inventory, i, i+1)
	}
	return nil
}

// Credit adds one unit of siteID received from account from.
func (a *Account) Credit(siteID, from string, now time.Time) {
	e := a.Entry(siteID)
	if e == nil {
		a.Inventory = append(a.Inventory, InventoryEntry{
			SiteID:       siteID,
			CaughtAt:     now,
			TradeHistory: []TradeEvent{},
		})
		e = &a.Inventory[len(a.Inventory)-1]
	}
	e.Count++
	e.TradeHistory = append(e.TradeHistory, TradeEvent{CounterpartyID: from, Type: TradeReceived, Date: now})
}

// Clone returns a deep copy of the account.
func (a *Account) Clone() *Account {
	c := *a
	if a.Location != nil {
		loc := *a.Location
		c.Location = &loc
	}
	c.Favorites = slices.Clone(a.Favorites)
	c.VisitedSites = slices.Clone(a.VisitedSites)
	c.Inventory = make([]InventoryEntry, len(a.Inventory))
	for i, e := range a.Inventory {
		e.TradeHistory = slices.Clone(e.TradeHistory)
		c.Inventory[i] = e
	}
	return &c
}
