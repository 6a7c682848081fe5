package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/delta/auction-house-server/lifecycle"
	"github.com/delta/auction-house-server/models"
	"github.com/delta/auction-house-server/utils"
)

// lotData is everything owned by one lot. Its lock serializes WithLotTx for
// that lot only.
type lotData struct {
	sync.Mutex
	lot         *models.Lot
	bids        []*models.Bid
	absentee    []*models.AbsenteeBid
	retractions map[uint32]*models.BidRetraction
}

// MemoryStore keeps the ledger in process memory. It is meant for tests and
// single-process development runs.
type MemoryStore struct {
	logger *logrus.Entry
	clock  utils.Clock

	mu            sync.RWMutex
	auctions      map[uint32]*models.Auction
	lots          map[uint32]*lotData
	bidLots       map[uint32]uint32
	tiers         map[uint32][]*models.PremiumTier
	registrations map[uint32]map[uint32]*models.Registration
	users         map[uint32]*models.User
	invoices      map[uint32]*models.Invoice

	idsLock sync.Mutex
	ids     map[string]uint32
}

// NewMemoryStore returns an empty MemoryStore
func NewMemoryStore(clock utils.Clock) *MemoryStore {
	if clock == nil {
		clock = utils.SystemClock
	}
	return &MemoryStore{
		logger: utils.Logger.WithFields(logrus.Fields{
			"module": "store.memory",
		}),
		clock:         clock,
		auctions:      make(map[uint32]*models.Auction),
		lots:          make(map[uint32]*lotData),
		bidLots:       make(map[uint32]uint32),
		tiers:         make(map[uint32][]*models.PremiumTier),
		registrations: make(map[uint32]map[uint32]*models.Registration),
		users:         make(map[uint32]*models.User),
		invoices:      make(map[uint32]*models.Invoice),
		ids:           make(map[string]uint32),
	}
}

func (s *MemoryStore) nextId(table string) uint32 {
	s.idsLock.Lock()
	defer s.idsLock.Unlock()
	s.ids[table]++
	return s.ids[table]
}

func copyLot(l *models.Lot) *models.Lot {
	c := *l
	if l.VisibilityOverride != nil {
		v := *l.VisibilityOverride
		c.VisibilityOverride = &v
	}
	return &c
}

func copyBid(b *models.Bid) *models.Bid {
	c := *b
	return &c
}

func copyAbsentee(ab *models.AbsenteeBid) *models.AbsenteeBid {
	c := *ab
	return &c
}

func (s *MemoryStore) CreateAuction(ctx context.Context, auction *models.Auction) error {
	now := s.clock.Now()
	auction.Id = s.nextId("Auctions")
	auction.CreatedAt = now
	auction.UpdatedAt = now

	c := *auction
	s.mu.Lock()
	s.auctions[auction.Id] = &c
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) GetAuction(ctx context.Context, auctionID uint32) (*models.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.auctions[auctionID]
	if !ok {
		return nil, models.NotFoundError{Entity: "Auction", Id: auctionID}
	}
	c := *a
	return &c, nil
}

func (s *MemoryStore) ListAuctions(ctx context.Context) ([]*models.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]*models.Auction, 0, len(s.auctions))
	for _, a := range s.auctions {
		c := *a
		res = append(res, &c)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Id < res[j].Id })
	return res, nil
}

func (s *MemoryStore) UpdateAuctionStatus(ctx context.Context, auctionID uint32, from, to lifecycle.AuctionStatus) (*models.Auction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.auctions[auctionID]
	if !ok {
		return nil, models.NotFoundError{Entity: "Auction", Id: auctionID}
	}
	if a.Status != from {
		return nil, lifecycle.TransitionAuction(a.Status, to)
	}
	a.Status = to
	a.UpdatedAt = s.clock.Now()
	c := *a
	return &c, nil
}

func (s *MemoryStore) CreateLot(ctx context.Context, lot *models.Lot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.auctions[lot.AuctionId]; !ok {
		return models.NotFoundError{Entity: "Auction", Id: lot.AuctionId}
	}

	now := s.clock.Now()
	lot.Id = s.nextId("Lots")
	lot.CreatedAt = now
	lot.UpdatedAt = now
	s.lots[lot.Id] = &lotData{
		lot:         copyLot(lot),
		retractions: make(map[uint32]*models.BidRetraction),
	}
	return nil
}

func (s *MemoryStore) getLotData(lotID uint32) (*lotData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ld, ok := s.lots[lotID]
	if !ok {
		return nil, models.NotFoundError{Entity: "Lot", Id: lotID}
	}
	return ld, nil
}

func (s *MemoryStore) GetLot(ctx context.Context, lotID uint32) (*models.Lot, error) {
	ld, err := s.getLotData(lotID)
	if err != nil {
		return nil, err
	}
	ld.Lock()
	defer ld.Unlock()
	return copyLot(ld.lot), nil
}

func (s *MemoryStore) GetLotsByAuction(ctx context.Context, auctionID uint32) ([]*models.Lot, error) {
	s.mu.RLock()
	var all []*lotData
	for _, ld := range s.lots {
		all = append(all, ld)
	}
	s.mu.RUnlock()

	var res []*models.Lot
	for _, ld := range all {
		ld.Lock()
		if ld.lot.AuctionId == auctionID {
			res = append(res, copyLot(ld.lot))
		}
		ld.Unlock()
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].LotNumber != res[j].LotNumber {
			return res[i].LotNumber < res[j].LotNumber
		}
		return res[i].Id < res[j].Id
	})
	return res, nil
}

func (s *MemoryStore) GetBid(ctx context.Context, bidID uint32) (*models.Bid, error) {
	s.mu.RLock()
	lotID, ok := s.bidLots[bidID]
	s.mu.RUnlock()
	if !ok {
		return nil, models.NotFoundError{Entity: "Bid", Id: bidID}
	}

	ld, err := s.getLotData(lotID)
	if err != nil {
		return nil, err
	}
	ld.Lock()
	defer ld.Unlock()
	for _, b := range ld.bids {
		if b.Id == bidID {
			return copyBid(b), nil
		}
	}
	return nil, models.NotFoundError{Entity: "Bid", Id: bidID}
}

func (s *MemoryStore) GetBids(ctx context.Context, lotID uint32) ([]*models.Bid, error) {
	ld, err := s.getLotData(lotID)
	if err != nil {
		return nil, err
	}
	ld.Lock()
	defer ld.Unlock()
	res := make([]*models.Bid, 0, len(ld.bids))
	for _, b := range ld.bids {
		res = append(res, copyBid(b))
	}
	return res, nil
}

func (s *MemoryStore) GetAbsenteeBid(ctx context.Context, lotID, bidderID uint32) (*models.AbsenteeBid, error) {
	ld, err := s.getLotData(lotID)
	if err != nil {
		return nil, err
	}
	ld.Lock()
	defer ld.Unlock()
	for _, ab := range ld.absentee {
		if ab.BidderId == bidderID && ab.IsActive {
			return copyAbsentee(ab), nil
		}
	}
	return nil, models.NotFoundError{Entity: "AbsenteeBid", Id: bidderID}
}

func (s *MemoryStore) GetPremiumTiers(ctx context.Context, auctionID uint32) ([]*models.PremiumTier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]*models.PremiumTier, 0, len(s.tiers[auctionID]))
	for _, t := range s.tiers[auctionID] {
		c := *t
		res = append(res, &c)
	}
	return res, nil
}

func (s *MemoryStore) SetPremiumTiers(ctx context.Context, auctionID uint32, tiers []*models.PremiumTier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.auctions[auctionID]; !ok {
		return models.NotFoundError{Entity: "Auction", Id: auctionID}
	}

	rows := make([]*models.PremiumTier, 0, len(tiers))
	for _, t := range tiers {
		t.Id = s.nextId("PremiumTiers")
		t.AuctionId = auctionID
		c := *t
		rows = append(rows, &c)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].MinAmount < rows[j].MinAmount })
	s.tiers[auctionID] = rows
	return nil
}

func (s *MemoryStore) CreateRegistration(ctx context.Context, reg *models.Registration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.auctions[reg.AuctionId]; !ok {
		return models.NotFoundError{Entity: "Auction", Id: reg.AuctionId}
	}
	if s.registrations[reg.AuctionId] == nil {
		s.registrations[reg.AuctionId] = make(map[uint32]*models.Registration)
	}
	if _, ok := s.registrations[reg.AuctionId][reg.BidderId]; ok {
		return models.ErrAlreadyRegistered
	}

	reg.Id = s.nextId("Registrations")
	reg.CreatedAt = s.clock.Now()
	c := *reg
	s.registrations[reg.AuctionId][reg.BidderId] = &c
	return nil
}

func (s *MemoryStore) GetRegistration(ctx context.Context, auctionID, bidderID uint32) (*models.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.registrations[auctionID][bidderID]
	if !ok {
		return nil, models.NotFoundError{Entity: "Registration", Id: bidderID}
	}
	c := *r
	return &c, nil
}

func (s *MemoryStore) ApproveRegistration(ctx context.Context, auctionID, bidderID uint32) (*models.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.registrations[auctionID][bidderID]
	if !ok {
		return nil, models.NotFoundError{Entity: "Registration", Id: bidderID}
	}
	if !r.IsApproved {
		approved := uint32(0)
		for _, other := range s.registrations[auctionID] {
			if other.IsApproved {
				approved++
			}
		}
		r.IsApproved = true
		r.Paddle = models.FirstPaddle + approved
	}
	c := *r
	return &c, nil
}

func (s *MemoryStore) CreateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, user.Email) {
			return models.AlreadyExistsError
		}
	}
	user.Id = s.nextId("Users")
	user.CreatedAt = s.clock.Now()
	c := *user
	s.users[user.Id] = &c
	return nil
}

func (s *MemoryStore) GetUser(ctx context.Context, userID uint32) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, models.NotFoundError{Entity: "User", Id: userID}
	}
	c := *u
	return &c, nil
}

func (s *MemoryStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			c := *u
			return &c, nil
		}
	}
	return nil, models.NotFoundError{Entity: "User"}
}

func (s *MemoryStore) CreateInvoice(ctx context.Context, inv *models.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.invoices[inv.LotId]; ok {
		return models.AlreadyExistsError
	}
	inv.Id = s.nextId("Invoices")
	inv.CreatedAt = s.clock.Now()
	c := *inv
	s.invoices[inv.LotId] = &c
	return nil
}

func (s *MemoryStore) GetInvoiceByLot(ctx context.Context, lotID uint32) (*models.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inv, ok := s.invoices[lotID]
	if !ok {
		return nil, models.NotFoundError{Entity: "Invoice", Id: lotID}
	}
	c := *inv
	return &c, nil
}

// WithLotTx stages copies of the lot's records, runs fn against them and
// swaps them in only if fn succeeds.
func (s *MemoryStore) WithLotTx(ctx context.Context, lotID uint32, fn func(tx LotTx) error) error {
	var l = s.logger.WithFields(logrus.Fields{
		"method":      "WithLotTx",
		"param_lotId": lotID,
	})

	ld, err := s.getLotData(lotID)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	ld.Lock()
	defer ld.Unlock()

	auction, err := s.GetAuction(ctx, ld.lot.AuctionId)
	if err != nil {
		return err
	}

	tx := &memLotTx{
		s:           s,
		lot:         copyLot(ld.lot),
		auction:     auction,
		retractions: make(map[uint32]*models.BidRetraction, len(ld.retractions)),
	}
	for _, b := range ld.bids {
		tx.bids = append(tx.bids, copyBid(b))
	}
	for _, ab := range ld.absentee {
		tx.absentee = append(tx.absentee, copyAbsentee(ab))
	}
	for id, r := range ld.retractions {
		c := *r
		tx.retractions[id] = &c
	}

	if err := fn(tx); err != nil {
		l.Debugf("Rolled back: %+v", err)
		return err
	}

	ld.lot = tx.lot
	ld.bids = tx.bids
	ld.absentee = tx.absentee
	ld.retractions = tx.retractions

	if len(tx.newBids) > 0 {
		s.mu.Lock()
		for _, id := range tx.newBids {
			s.bidLots[id] = lotID
		}
		s.mu.Unlock()
	}

	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

type memLotTx struct {
	s           *MemoryStore
	lot         *models.Lot
	auction     *models.Auction
	bids        []*models.Bid
	absentee    []*models.AbsenteeBid
	retractions map[uint32]*models.BidRetraction
	newBids     []uint32
}

func (tx *memLotTx) Lot() *models.Lot {
	return copyLot(tx.lot)
}

func (tx *memLotTx) Auction() *models.Auction {
	c := *tx.auction
	return &c
}

func (tx *memLotTx) Bids() ([]*models.Bid, error) {
	res := make([]*models.Bid, 0, len(tx.bids))
	for _, b := range tx.bids {
		res = append(res, copyBid(b))
	}
	return res, nil
}

func (tx *memLotTx) InsertBid(bid *models.Bid) error {
	if bid.LotId != tx.lot.Id {
		return fmt.Errorf("bid for lot %d inserted in transaction of lot %d", bid.LotId, tx.lot.Id)
	}
	bid.Id = tx.s.nextId("Bids")
	if bid.CreatedAt.IsZero() {
		bid.CreatedAt = tx.s.clock.Now()
	}
	tx.bids = append(tx.bids, copyBid(bid))
	tx.newBids = append(tx.newBids, bid.Id)
	return nil
}

func (tx *memLotTx) UpdateBid(bid *models.Bid) error {
	for i, b := range tx.bids {
		if b.Id == bid.Id {
			tx.bids[i] = copyBid(bid)
			return nil
		}
	}
	return models.NotFoundError{Entity: "Bid", Id: bid.Id}
}

func (tx *memLotTx) AbsenteeBids() ([]*models.AbsenteeBid, error) {
	var res []*models.AbsenteeBid
	for _, ab := range tx.absentee {
		if ab.IsActive {
			res = append(res, copyAbsentee(ab))
		}
	}
	return res, nil
}

func (tx *memLotTx) SaveAbsenteeBid(ab *models.AbsenteeBid) error {
	now := tx.s.clock.Now()
	ab.UpdatedAt = now
	if ab.Id == 0 {
		ab.Id = tx.s.nextId("AbsenteeBids")
		ab.CreatedAt = now
		tx.absentee = append(tx.absentee, copyAbsentee(ab))
		return nil
	}
	for i, existing := range tx.absentee {
		if existing.Id == ab.Id {
			tx.absentee[i] = copyAbsentee(ab)
			return nil
		}
	}
	return models.NotFoundError{Entity: "AbsenteeBid", Id: ab.Id}
}

func (tx *memLotTx) Retraction(bidID uint32) (*models.BidRetraction, error) {
	r, ok := tx.retractions[bidID]
	if !ok {
		return nil, nil
	}
	c := *r
	return &c, nil
}

func (tx *memLotTx) InsertRetraction(r *models.BidRetraction) error {
	if _, ok := tx.retractions[r.BidId]; ok {
		return models.AlreadyRetractedError{BidId: r.BidId}
	}
	r.Id = tx.s.nextId("BidRetractions")
	if r.CreatedAt.IsZero() {
		r.CreatedAt = tx.s.clock.Now()
	}
	c := *r
	tx.retractions[r.BidId] = &c
	return nil
}

func (tx *memLotTx) Registration(bidderID uint32) (*models.Registration, error) {
	return tx.s.GetRegistration(context.Background(), tx.auction.Id, bidderID)
}

func (tx *memLotTx) UpdateLot(lot *models.Lot) error {
	if lot.Id != tx.lot.Id {
		return fmt.Errorf("lot %d updated in transaction of lot %d", lot.Id, tx.lot.Id)
	}
	lot.UpdatedAt = tx.s.clock.Now()
	tx.lot = copyLot(lot)
	return nil
}
