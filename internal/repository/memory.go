package repository

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"culturehub-api/internal/geo"
	"culturehub-api/internal/model"
)

// memoryState is everything a MemoryStore holds. Transactions snapshot it.
type memoryState struct {
	sites     map[string]model.Site
	accounts  map[string]*model.Account
	codes     map[string]model.TradeCode
	reviews   map[string]model.Review
	transfers []model.Transfer
}

func newMemoryState() *memoryState {
	return &memoryState{
		sites:    make(map[string]model.Site),
		accounts: make(map[string]*model.Account),
		codes:    make(map[string]model.TradeCode),
		reviews:  make(map[string]model.Review),
	}
}

func (s *memoryState) clone() *memoryState {
	c := &memoryState{
		sites:     make(map[string]model.Site, len(s.sites)),
		accounts:  make(map[string]*model.Account, len(s.accounts)),
		codes:     make(map[string]model.TradeCode, len(s.codes)),
		reviews:   make(map[string]model.Review, len(s.reviews)),
		transfers: slices.Clone(s.transfers),
	}
	for k, v := range s.sites {
		c.sites[k] = v
	}
	for k, v := range s.accounts {
		c.accounts[k] = v.Clone()
	}
	for k, v := range s.codes {
		c.codes[k] = v
	}
	for k, v := range s.reviews {
		c.reviews[k] = v
	}
	return c
}

// MemoryStore implements Store in process memory. Every operation holds a
// single mutex, and a transaction holds it for its whole duration, so
// transactions are serializable. Intended for development and tests.
type MemoryStore struct {
	mu    sync.Mutex
	state *memoryState
}

type memoryTxKey struct{}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newMemoryState()}
}

// lock acquires the store mutex unless ctx belongs to a transaction that
// already holds it.
func (s *MemoryStore) lock(ctx context.Context) func() {
	if owner, _ := ctx.Value(memoryTxKey{}).(*MemoryStore); owner == s {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// WithinTransaction runs fn while holding the store lock and restores the
// previous state if fn fails or panics.
func (s *MemoryStore) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if owner, _ := ctx.Value(memoryTxKey{}).(*MemoryStore); owner == s {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.state.clone()
	committed := false
	defer func() {
		if !committed {
			s.state = snapshot
		}
	}()

	if err := fn(context.WithValue(ctx, memoryTxKey{}, s)); err != nil {
		return err
	}
	committed = true
	return nil
}

func (s *MemoryStore) Sites() SiteRepository           { return memorySites{s} }
func (s *MemoryStore) Accounts() AccountRepository     { return memoryAccounts{s} }
func (s *MemoryStore) TradeCodes() TradeCodeRepository { return memoryTradeCodes{s} }
func (s *MemoryStore) Reviews() ReviewRepository       { return memoryReviews{s} }
func (s *MemoryStore) Transfers() TransferRepository   { return memoryTransfers{s} }
func (s *MemoryStore) Ping(ctx context.Context) error  { return ctx.Err() }
func (s *MemoryStore) Close() error                    { return nil }

// --- sites ---

type memorySites struct{ s *MemoryStore }

func (r memorySites) FindWithinRadius(ctx context.Context, center model.Point, radius float64) ([]model.Site, error) {
	defer r.s.lock(ctx)()

	type hit struct {
		site model.Site
		dist float64
	}
	var hits []hit
	for _, site := range r.s.state.sites {
		if d := geo.Distance(center, site.Location); d <= radius {
			hits = append(hits, hit{site, d})
		}
	}
	slices.SortFunc(hits, func(a, b hit) int {
		if c := cmp.Compare(a.dist, b.dist); c != 0 {
			return c
		}
		return cmp.Compare(a.site.ID, b.site.ID)
	})

	out := make([]model.Site, len(hits))
	for i, h := range hits {
		out[i] = h.site
	}
	return out, nil
}

func (r memorySites) FindByID(ctx context.Context, id string) (*model.Site, error) {
	defer r.s.lock(ctx)()

	site, ok := r.s.state.sites[id]
	if !ok {
		return nil, fmt.Errorf("site %s: %w", id, model.ErrNotFound)
	}
	return &site, nil
}

func (r memorySites) FindByIDs(ctx context.Context, ids []string) ([]model.Site, error) {
	defer r.s.lock(ctx)()

	out := make([]model.Site, 0, len(ids))
	for _, id := range ids {
		if site, ok := r.s.state.sites[id]; ok {
			out = append(out, site)
		}
	}
	return out, nil
}

func (r memorySites) List(ctx context.Context, filter SiteFilter) ([]model.Site, error) {
	defer r.s.lock(ctx)()

	var out []model.Site
	for _, site := range r.s.state.sites {
		if filter.Category != "" && !strings.EqualFold(site.Category, filter.Category) {
			continue
		}
		out = append(out, site)
	}
	slices.SortFunc(out, func(a, b model.Site) int {
		if c := cmp.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return page(out, filter.Offset, filter.Limit), nil
}

func (r memorySites) UpsertMany(ctx context.Context, sites []model.Site) (int, error) {
	defer r.s.lock(ctx)()

	inserted := 0
	for _, site := range sites {
		if _, ok := r.s.state.sites[site.ID]; ok {
			continue
		}
		r.s.state.sites[site.ID] = site
		inserted++
	}
	return inserted, nil
}

func (r memorySites) Count(ctx context.Context) (int64, error) {
	defer r.s.lock(ctx)()
	return int64(len(r.s.state.sites)), nil
}

// --- accounts ---

type memoryAccounts struct{ s *MemoryStore }

func (r memoryAccounts) Create(ctx context.Context, account *model.Account) error {
	defer r.s.lock(ctx)()

	if _, ok := r.s.state.accounts[account.ID]; ok {
		return fmt.Errorf("account %s: %w", account.ID, model.ErrConflict)
	}
	if r.emailTaken(account.Email, "") {
		return fmt.Errorf("email %s: %w", account.Email, model.ErrConflict)
	}
	account.Version = 1
	r.s.state.accounts[account.ID] = account.Clone()
	return nil
}

func (r memoryAccounts) Get(ctx context.Context, id string) (*model.Account, error) {
	defer r.s.lock(ctx)()

	a, ok := r.s.state.accounts[id]
	if !ok {
		return nil, fmt.Errorf("account %s: %w", id, model.ErrNotFound)
	}
	return a.Clone(), nil
}

func (r memoryAccounts) FindByEmail(ctx context.Context, email string) (*model.Account, error) {
	defer r.s.lock(ctx)()

	for _, a := range r.s.state.accounts {
		if strings.EqualFold(a.Email, email) {
			return a.Clone(), nil
		}
	}
	return nil, fmt.Errorf("account with email %s: %w", email, model.ErrNotFound)
}

func (r memoryAccounts) Save(ctx context.Context, account *model.Account) error {
	defer r.s.lock(ctx)()

	stored, ok := r.s.state.accounts[account.ID]
	if !ok {
		return fmt.Errorf("account %s: %w", account.ID, model.ErrNotFound)
	}
	if stored.Version != account.Version {
		return fmt.Errorf("account %s: %w", account.ID, model.ErrVersionConflict)
	}
	if r.emailTaken(account.Email, account.ID) {
		return fmt.Errorf("email %s: %w", account.Email, model.ErrConflict)
	}

	account.Version++
	r.s.state.accounts[account.ID] = account.Clone()
	return nil
}

func (r memoryAccounts) EmailTaken(ctx context.Context, email, exceptID string) (bool, error) {
	defer r.s.lock(ctx)()
	return r.emailTaken(email, exceptID), nil
}

func (r memoryAccounts) emailTaken(email, exceptID string) bool {
	for id, a := range r.s.state.accounts {
		if id != exceptID && strings.EqualFold(a.Email, email) {
			return true
		}
	}
	return false
}

func (r memoryAccounts) Count(ctx context.Context) (int64, error) {
	defer r.s.lock(ctx)()
	return int64(len(r.s.state.accounts)), nil
}

// --- trade codes ---

type memoryTradeCodes struct{ s *MemoryStore }

func (r memoryTradeCodes) Create(ctx context.Context, code *model.TradeCode) error {
	defer r.s.lock(ctx)()

	if _, ok := r.s.state.codes[code.Code]; ok {
		return fmt.Errorf("trade code: %w", model.ErrConflict)
	}
	r.s.state.codes[code.Code] = *code
	return nil
}

func (r memoryTradeCodes) Get(ctx context.Context, code string) (*model.TradeCode, error) {
	defer r.s.lock(ctx)()

	tc, ok := r.s.state.codes[code]
	if !ok {
		return nil, fmt.Errorf("trade code: %w", model.ErrNotFound)
	}
	return &tc, nil
}

func (r memoryTradeCodes) Delete(ctx context.Context, code string) error {
	defer r.s.lock(ctx)()

	if _, ok := r.s.state.codes[code]; !ok {
		return fmt.Errorf("trade code: %w", model.ErrNotFound)
	}
	delete(r.s.state.codes, code)
	return nil
}

func (r memoryTradeCodes) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	defer r.s.lock(ctx)()

	var n int64
	for k, tc := range r.s.state.codes {
		if tc.Expired(now) {
			delete(r.s.state.codes, k)
			n++
		}
	}
	return n, nil
}

func (r memoryTradeCodes) Count(ctx context.Context) (int64, error) {
	defer r.s.lock(ctx)()
	return int64(len(r.s.state.codes)), nil
}

// --- reviews ---

type memoryReviews struct{ s *MemoryStore }

func (r memoryReviews) Create(ctx context.Context, review *model.Review) error {
	defer r.s.lock(ctx)()

	for _, existing := range r.s.state.reviews {
		if existing.AccountID == review.AccountID && existing.SiteID == review.SiteID {
			return fmt.Errorf("review for site %s: %w", review.SiteID, model.ErrConflict)
		}
	}
	r.s.state.reviews[review.ID] = *review
	return nil
}

func (r memoryReviews) Get(ctx context.Context, id string) (*model.Review, error) {
	defer r.s.lock(ctx)()

	review, ok := r.s.state.reviews[id]
	if !ok {
		return nil, fmt.Errorf("review %s: %w", id, model.ErrNotFound)
	}
	return &review, nil
}

func (r memoryReviews) ListBySite(ctx context.Context, siteID string) ([]model.Review, error) {
	defer r.s.lock(ctx)()

	out := []model.Review{}
	for _, review := range r.s.state.reviews {
		if review.SiteID == siteID {
			out = append(out, review)
		}
	}
	slices.SortFunc(out, func(a, b model.Review) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (r memoryReviews) Update(ctx context.Context, review *model.Review) error {
	defer r.s.lock(ctx)()

	if _, ok := r.s.state.reviews[review.ID]; !ok {
		return fmt.Errorf("review %s: %w", review.ID, model.ErrNotFound)
	}
	r.s.state.reviews[review.ID] = *review
	return nil
}

func (r memoryReviews) Delete(ctx context.Context, id string) error {
	defer r.s.lock(ctx)()

	if _, ok := r.s.state.reviews[id]; !ok {
		return fmt.Errorf("review %s: %w", id, model.ErrNotFound)
	}
	delete(r.s.state.reviews, id)
	return nil
}

func (r memoryReviews) Count(ctx context.Context) (int64, error) {
	defer r.s.lock(ctx)()
	return int64(len(r.s.state.reviews)), nil
}

// --- transfers ---

type memoryTransfers struct{ s *MemoryStore }

func (r memoryTransfers) Append(ctx context.Context, transfer *model.Transfer) error {
	defer r.s.lock(ctx)()
	r.s.state.transfers = append(r.s.state.transfers, *transfer)
	return nil
}

func (r memoryTransfers) ListByAccount(ctx context.Context, accountID string) ([]model.Transfer, error) {
	defer r.s.lock(ctx)()

	out := []model.Transfer{}
	for i := len(r.s.state.transfers) - 1; i >= 0; i-- {
		t := r.s.state.transfers[i]
		if t.FromAccountID == accountID || t.ToAccountID == accountID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r memoryTransfers) Count(ctx context.Context) (int64, error) {
	defer r.s.lock(ctx)()
	return int64(len(r.s.state.transfers)), nil
}

func page[T any](items []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// Ensure MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)
