package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"auction-engine/internal/biddingerrors"
	"auction-engine/internal/lock"
	model "auction-engine/internal/models"
)

// MemoryRepo is a concurrency-safe in-memory implementation of AuctionDB
type MemoryRepo struct {
	mu    sync.RWMutex
	store memStore
	users map[string]model.User
	rows  *lock.LocalLocker // per-auction row locks held by RunInTx
}

// NewMemoryRepo creates a new in-memory repository instance
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		store: memStore{
			auctions:     make(map[string]model.Auction),
			bids:         make(map[string][]model.Bid),
			userAuctions: make(map[string][]string),
		},
		users: make(map[string]model.User),
		rows:  lock.NewLocalLocker(),
	}
}

// AddUser registers a user so UserExists can find it
func (r *MemoryRepo) AddUser(user model.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.UserID] = user
}

func (r *MemoryRepo) UserExists(_ context.Context, userID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.users[userID]
	return ok, nil
}

func (r *MemoryRepo) GetAuction(_ context.Context, auctionID string) (model.Auction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.store.getAuction(auctionID)
}

func (r *MemoryRepo) SaveAuction(_ context.Context, auction model.Auction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.store.saveAuction(auction)
}

func (r *MemoryRepo) DeleteAuction(_ context.Context, auctionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.store.deleteAuction(auctionID)
}

func (r *MemoryRepo) FindDue(_ context.Context, now time.Time) ([]model.Auction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.store.filter(func(a model.Auction) bool {
		return a.State == model.StateOpen && !a.EndDate.After(now)
	}, byEndDate), nil
}

func (r *MemoryRepo) FindStartable(_ context.Context, now time.Time) ([]model.Auction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.store.filter(func(a model.Auction) bool {
		return a.State == model.StateScheduled && !a.StartsAt.After(now)
	}, byEndDate), nil
}

func (r *MemoryRepo) ListByOwner(_ context.Context, ownerID string) ([]model.Auction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.store.filter(func(a model.Auction) bool { return a.OwnerID == ownerID }, byNewest), nil
}

func (r *MemoryRepo) ListEndingSoon(_ context.Context, limit int) ([]model.Auction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := r.store.filter(func(a model.Auction) bool { return a.State == model.StateOpen }, byEndDate)
	return truncate(out, limit), nil
}

func (r *MemoryRepo) ListNewest(_ context.Context, limit int) ([]model.Auction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := r.store.filter(func(model.Auction) bool { return true }, byNewest)
	return truncate(out, limit), nil
}

func (r *MemoryRepo) SaveBids(_ context.Context, bids ...model.Bid) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.store.saveBids(bids)
}

func (r *MemoryRepo) FindBidsByAuction(_ context.Context, auctionID string) ([]model.Bid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.store.bidsByAuction(auctionID)
}

func (r *MemoryRepo) FindWinningBid(_ context.Context, auctionID string) (model.Bid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.store.winningBid(auctionID)
}

func (r *MemoryRepo) FindBidsByBidder(_ context.Context, bidderID string) ([]model.Bid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.store.bidsByBidder(bidderID)
}

// RunInTx holds auctionID's row lock while fn runs. Writes made through the
// view are staged and applied under the store lock only when fn succeeds, so
// transactions on different auctions never wait on each other.
func (r *MemoryRepo) RunInTx(ctx context.Context, auctionID string, fn func(tx Tx) error) error {
	release, err := r.rows.Acquire(ctx, auctionID)
	if err != nil {
		return err
	}
	defer release()

	tx := newMemTx(r)
	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

// memStore holds the maps; callers own locking
type memStore struct {
	auctions     map[string]model.Auction
	bids         map[string][]model.Bid // key: auctionID -> bids in arrival order
	userAuctions map[string][]string    // key: bidderID -> auctionIDs the user has bid on
}

func (s *memStore) getAuction(auctionID string) (model.Auction, error) {
	a, ok := s.auctions[auctionID]
	if !ok {
		return model.Auction{}, fmt.Errorf("get auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}
	return a, nil
}

func (s *memStore) saveAuction(a model.Auction) error {
	if err := storableAuction(a); err != nil {
		return err
	}
	s.auctions[a.AuctionID] = a
	return nil
}

func storableAuction(a model.Auction) error {
	if a.AuctionID == "" {
		return fmt.Errorf("save auction: %w - empty auction id", biddingerrors.ErrInvalidAuction)
	}
	if !a.State.Valid() {
		return fmt.Errorf("save auction %s: %w - unknown state %q", a.AuctionID, biddingerrors.ErrInvalidAuction, a.State)
	}
	return nil
}

func (s *memStore) deleteAuction(auctionID string) error {
	if _, ok := s.auctions[auctionID]; !ok {
		return fmt.Errorf("delete auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}
	delete(s.auctions, auctionID)
	delete(s.bids, auctionID)
	s.reindex()
	return nil
}

func (s *memStore) filter(keep func(model.Auction) bool, less func(a, b model.Auction) bool) []model.Auction {
	all := make([]model.Auction, 0, len(s.auctions))
	for _, a := range s.auctions {
		all = append(all, a)
	}
	return selectSorted(all, keep, less)
}

func selectSorted(all []model.Auction, keep func(model.Auction) bool, less func(a, b model.Auction) bool) []model.Auction {
	out := make([]model.Auction, 0)
	for _, a := range all {
		if keep(a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

// saveBids validates every bid before applying any of them
func (s *memStore) saveBids(bids []model.Bid) error {
	for _, b := range bids {
		if err := storable(b); err != nil {
			return err
		}
		if _, ok := s.auctions[b.AuctionID]; !ok {
			return fmt.Errorf("save bid %s for auction %s: %w", b.BidID, b.AuctionID, biddingerrors.ErrAuctionNotFound)
		}
	}

	for _, b := range bids {
		s.upsertBid(b)
	}
	return nil
}

func (s *memStore) upsertBid(b model.Bid) {
	s.bids[b.AuctionID] = upsert(s.bids[b.AuctionID], b)
	s.index(b.BidderID, b.AuctionID)
}

func (s *memStore) index(bidderID, auctionID string) {
	for _, id := range s.userAuctions[bidderID] {
		if id == auctionID {
			return
		}
	}
	s.userAuctions[bidderID] = append(s.userAuctions[bidderID], auctionID)
}

// upsert replaces the bid with the same id in place or appends it
func upsert(list []model.Bid, b model.Bid) []model.Bid {
	for i := range list {
		if list[i].BidID == b.BidID {
			list[i] = b
			return list
		}
	}
	return append(list, b)
}

func (s *memStore) bidsByAuction(auctionID string) ([]model.Bid, error) {
	bids, ok := s.bids[auctionID]
	if !ok || len(bids) == 0 {
		return nil, fmt.Errorf("get bids for auction %s: %w", auctionID, biddingerrors.ErrNoBids)
	}
	return append([]model.Bid(nil), bids...), nil
}

func (s *memStore) winningBid(auctionID string) (model.Bid, error) {
	for _, b := range s.bids[auctionID] {
		if b.Status == model.BidWinning {
			return b, nil
		}
	}
	return model.Bid{}, fmt.Errorf("get winning bid for auction %s: %w", auctionID, biddingerrors.ErrNoBids)
}

func (s *memStore) bidsByBidder(bidderID string) ([]model.Bid, error) {
	auctionIDs, ok := s.userAuctions[bidderID]
	if !ok || len(auctionIDs) == 0 {
		return nil, fmt.Errorf("get bids for user %s: %w", bidderID, biddingerrors.ErrUserNoBids)
	}

	out := make([]model.Bid, 0)
	for _, id := range auctionIDs {
		for _, b := range s.bids[id] {
			if b.BidderID == bidderID {
				out = append(out, b)
			}
		}
	}
	return out, nil
}

// reindex rebuilds userAuctions from the bid lists
func (s *memStore) reindex() {
	s.userAuctions = make(map[string][]string)
	ids := make([]string, 0, len(s.bids))
	for id := range s.bids {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		seen := make(map[string]bool)
		for _, b := range s.bids[id] {
			if !seen[b.BidderID] {
				seen[b.BidderID] = true
				s.userAuctions[b.BidderID] = append(s.userAuctions[b.BidderID], id)
			}
		}
	}
}

// memTx stages writes per auction on top of the committed store. Reads see
// the staged rows first; nothing is visible to other readers before commit.
type memTx struct {
	repo     *MemoryRepo
	auctions map[string]model.Auction
	bids     map[string][]model.Bid
	deleted  map[string]bool
}

func newMemTx(r *MemoryRepo) *memTx {
	return &memTx{
		repo:     r,
		auctions: make(map[string]model.Auction),
		bids:     make(map[string][]model.Bid),
		deleted:  make(map[string]bool),
	}
}

func (t *memTx) commit() {
	r := t.repo
	r.mu.Lock()
	defer r.mu.Unlock()

	for id := range t.deleted {
		delete(r.store.auctions, id)
		delete(r.store.bids, id)
	}
	for id, a := range t.auctions {
		r.store.auctions[id] = a
	}
	for id, list := range t.bids {
		r.store.bids[id] = list
		for _, b := range list {
			r.store.index(b.BidderID, id)
		}
	}
	if len(t.deleted) > 0 {
		r.store.reindex()
	}
}

// bidList returns a private copy of auctionID's bids as this tx sees them
func (t *memTx) bidList(auctionID string) []model.Bid {
	if t.deleted[auctionID] {
		return nil
	}
	if list, ok := t.bids[auctionID]; ok {
		return append([]model.Bid(nil), list...)
	}
	t.repo.mu.RLock()
	defer t.repo.mu.RUnlock()
	return append([]model.Bid(nil), t.repo.store.bids[auctionID]...)
}

// view merges staged auctions into the committed set
func (t *memTx) view() []model.Auction {
	t.repo.mu.RLock()
	all := make([]model.Auction, 0, len(t.repo.store.auctions)+len(t.auctions))
	for id, a := range t.repo.store.auctions {
		if _, staged := t.auctions[id]; staged || t.deleted[id] {
			continue
		}
		all = append(all, a)
	}
	t.repo.mu.RUnlock()

	for _, a := range t.auctions {
		all = append(all, a)
	}
	return all
}

func (t *memTx) GetAuction(_ context.Context, auctionID string) (model.Auction, error) {
	if t.deleted[auctionID] {
		return model.Auction{}, fmt.Errorf("get auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}
	if a, ok := t.auctions[auctionID]; ok {
		return a, nil
	}
	t.repo.mu.RLock()
	defer t.repo.mu.RUnlock()
	return t.repo.store.getAuction(auctionID)
}

func (t *memTx) SaveAuction(_ context.Context, auction model.Auction) error {
	if err := storableAuction(auction); err != nil {
		return err
	}
	if t.deleted[auction.AuctionID] {
		delete(t.deleted, auction.AuctionID)
		t.bids[auction.AuctionID] = []model.Bid{}
	}
	t.auctions[auction.AuctionID] = auction
	return nil
}

func (t *memTx) DeleteAuction(ctx context.Context, auctionID string) error {
	if _, err := t.GetAuction(ctx, auctionID); err != nil {
		return fmt.Errorf("delete auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}
	delete(t.auctions, auctionID)
	delete(t.bids, auctionID)
	t.deleted[auctionID] = true
	return nil
}

func (t *memTx) FindDue(_ context.Context, now time.Time) ([]model.Auction, error) {
	return selectSorted(t.view(), func(a model.Auction) bool {
		return a.State == model.StateOpen && !a.EndDate.After(now)
	}, byEndDate), nil
}

func (t *memTx) FindStartable(_ context.Context, now time.Time) ([]model.Auction, error) {
	return selectSorted(t.view(), func(a model.Auction) bool {
		return a.State == model.StateScheduled && !a.StartsAt.After(now)
	}, byEndDate), nil
}

func (t *memTx) ListByOwner(_ context.Context, ownerID string) ([]model.Auction, error) {
	return selectSorted(t.view(), func(a model.Auction) bool { return a.OwnerID == ownerID }, byNewest), nil
}

func (t *memTx) ListEndingSoon(_ context.Context, limit int) ([]model.Auction, error) {
	out := selectSorted(t.view(), func(a model.Auction) bool { return a.State == model.StateOpen }, byEndDate)
	return truncate(out, limit), nil
}

func (t *memTx) ListNewest(_ context.Context, limit int) ([]model.Auction, error) {
	return truncate(selectSorted(t.view(), func(model.Auction) bool { return true }, byNewest), limit), nil
}

// SaveBids validates every bid before staging any of them
func (t *memTx) SaveBids(ctx context.Context, bids ...model.Bid) error {
	for _, b := range bids {
		if err := storable(b); err != nil {
			return err
		}
		if _, err := t.GetAuction(ctx, b.AuctionID); err != nil {
			return fmt.Errorf("save bid %s for auction %s: %w", b.BidID, b.AuctionID, biddingerrors.ErrAuctionNotFound)
		}
	}

	for _, b := range bids {
		t.bids[b.AuctionID] = upsert(t.bidList(b.AuctionID), b)
	}
	return nil
}

func (t *memTx) FindBidsByAuction(_ context.Context, auctionID string) ([]model.Bid, error) {
	list := t.bidList(auctionID)
	if len(list) == 0 {
		return nil, fmt.Errorf("get bids for auction %s: %w", auctionID, biddingerrors.ErrNoBids)
	}
	return list, nil
}

func (t *memTx) FindWinningBid(_ context.Context, auctionID string) (model.Bid, error) {
	for _, b := range t.bidList(auctionID) {
		if b.Status == model.BidWinning {
			return b, nil
		}
	}
	return model.Bid{}, fmt.Errorf("get winning bid for auction %s: %w", auctionID, biddingerrors.ErrNoBids)
}

func (t *memTx) FindBidsByBidder(_ context.Context, bidderID string) ([]model.Bid, error) {
	touched := func(id string) bool {
		_, staged := t.bids[id]
		return staged || t.deleted[id]
	}

	out := make([]model.Bid, 0)
	t.repo.mu.RLock()
	for _, id := range t.repo.store.userAuctions[bidderID] {
		if touched(id) {
			continue
		}
		for _, b := range t.repo.store.bids[id] {
			if b.BidderID == bidderID {
				out = append(out, b)
			}
		}
	}
	t.repo.mu.RUnlock()

	for _, list := range t.bids {
		for _, b := range list {
			if b.BidderID == bidderID {
				out = append(out, b)
			}
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("get bids for user %s: %w", bidderID, biddingerrors.ErrUserNoBids)
	}
	return out, nil
}

func byEndDate(a, b model.Auction) bool {
	if a.EndDate.Equal(b.EndDate) {
		return a.AuctionID < b.AuctionID
	}
	return a.EndDate.Before(b.EndDate)
}

func byNewest(a, b model.Auction) bool {
	if a.CreatedAt.Equal(b.CreatedAt) {
		return a.AuctionID < b.AuctionID
	}
	return a.CreatedAt.After(b.CreatedAt)
}

func truncate(auctions []model.Auction, limit int) []model.Auction {
	if limit > 0 && len(auctions) > limit {
		return auctions[:limit]
	}
	return auctions
}
