package store

import (
	"context"
	"fmt"

	"github.com/jinzhu/gorm"
	"github.com/sirupsen/logrus"

	"github.com/delta/auction-house-server/lifecycle"
	"github.com/delta/auction-house-server/models"
	"github.com/delta/auction-house-server/utils"
)

// GormStore keeps the ledger in mysql (production) or sqlite3 (development, tests)
type GormStore struct {
	logger *logrus.Entry
	db     *gorm.DB
	clock  utils.Clock
	// lockRows is set for dialects that understand SELECT ... FOR UPDATE
	lockRows bool
}

// AllTables lists every table the ledger owns
var AllTables = []interface{}{
	&models.Auction{},
	&models.Lot{},
	&models.Bid{},
	&models.AbsenteeBid{},
	&models.BidRetraction{},
	&models.PremiumTier{},
	&models.Registration{},
	&models.User{},
	&models.Invoice{},
	&models.AuditLog{},
}

// NewGormStore wraps an open database and migrates the schema
func NewGormStore(db *gorm.DB, clock utils.Clock) (*GormStore, error) {
	if clock == nil {
		clock = utils.SystemClock
	}

	s := &GormStore{
		logger: utils.Logger.WithFields(logrus.Fields{
			"module":  "store.gorm",
			"dialect": db.Dialect().GetName(),
		}),
		db:       db,
		clock:    clock,
		lockRows: db.Dialect().GetName() == "mysql",
	}

	if err := db.AutoMigrate(AllTables...).Error; err != nil {
		s.logger.Errorf("Migration failed: %+v", err)
		return nil, fmt.Errorf("migrate: %w", err)
	}

	s.logger.Info("Ledger store ready")
	return s, nil
}

// DB exposes the underlying handle for adapters sharing the database
func (s *GormStore) DB() *gorm.DB {
	return s.db
}

func notFound(err error, entity string, id uint32) error {
	if gorm.IsRecordNotFoundError(err) {
		return models.NotFoundError{Entity: entity, Id: id}
	}
	return err
}

func (s *GormStore) forUpdate(db *gorm.DB) *gorm.DB {
	if s.lockRows {
		return db.Set("gorm:query_option", "FOR UPDATE")
	}
	return db
}

// inTx runs fn inside a database transaction, rolling back on error or panic
func (s *GormStore) inTx(ctx context.Context, fn func(tx *gorm.DB) error) (err error) {
	tx := s.db.BeginTx(ctx, nil)
	if tx.Error != nil {
		return tx.Error
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err = fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit().Error
}

func (s *GormStore) CreateAuction(ctx context.Context, auction *models.Auction) error {
	return s.db.Create(auction).Error
}

func (s *GormStore) GetAuction(ctx context.Context, auctionID uint32) (*models.Auction, error) {
	var a models.Auction
	if err := s.db.First(&a, auctionID).Error; err != nil {
		return nil, notFound(err, "Auction", auctionID)
	}
	return &a, nil
}

func (s *GormStore) ListAuctions(ctx context.Context) ([]*models.Auction, error) {
	var auctions []*models.Auction
	if err := s.db.Order("id").Find(&auctions).Error; err != nil {
		return nil, err
	}
	return auctions, nil
}

func (s *GormStore) UpdateAuctionStatus(ctx context.Context, auctionID uint32, from, to lifecycle.AuctionStatus) (*models.Auction, error) {
	var a models.Auction
	err := s.inTx(ctx, func(tx *gorm.DB) error {
		if err := s.forUpdate(tx).First(&a, auctionID).Error; err != nil {
			return notFound(err, "Auction", auctionID)
		}
		if a.Status != from {
			return lifecycle.TransitionAuction(a.Status, to)
		}
		a.Status = to
		return tx.Save(&a).Error
	})
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *GormStore) CreateLot(ctx context.Context, lot *models.Lot) error {
	if _, err := s.GetAuction(ctx, lot.AuctionId); err != nil {
		return err
	}
	return s.db.Create(lot).Error
}

func (s *GormStore) GetLot(ctx context.Context, lotID uint32) (*models.Lot, error) {
	var lot models.Lot
	if err := s.db.First(&lot, lotID).Error; err != nil {
		return nil, notFound(err, "Lot", lotID)
	}
	return &lot, nil
}

func (s *GormStore) GetLotsByAuction(ctx context.Context, auctionID uint32) ([]*models.Lot, error) {
	var lots []*models.Lot
	err := s.db.Where("auctionId = ?", auctionID).Order("lotNumber").Order("id").Find(&lots).Error
	return lots, err
}

func (s *GormStore) GetBid(ctx context.Context, bidID uint32) (*models.Bid, error) {
	var bid models.Bid
	if err := s.db.First(&bid, bidID).Error; err != nil {
		return nil, notFound(err, "Bid", bidID)
	}
	return &bid, nil
}

func (s *GormStore) GetBids(ctx context.Context, lotID uint32) ([]*models.Bid, error) {
	var bids []*models.Bid
	if err := s.db.Where("lotId = ?", lotID).Order("id").Find(&bids).Error; err != nil {
		return nil, err
	}
	models.SortByCreation(bids)
	return bids, nil
}

func (s *GormStore) GetAbsenteeBid(ctx context.Context, lotID, bidderID uint32) (*models.AbsenteeBid, error) {
	var ab models.AbsenteeBid
	err := s.db.Where("lotId = ? AND bidderId = ? AND isActive = ?", lotID, bidderID, true).First(&ab).Error
	if err != nil {
		return nil, notFound(err, "AbsenteeBid", bidderID)
	}
	return &ab, nil
}

func (s *GormStore) GetPremiumTiers(ctx context.Context, auctionID uint32) ([]*models.PremiumTier, error) {
	var tiers []*models.PremiumTier
	err := s.db.Where("auctionId = ?", auctionID).Order("minAmount").Find(&tiers).Error
	return tiers, err
}

func (s *GormStore) SetPremiumTiers(ctx context.Context, auctionID uint32, tiers []*models.PremiumTier) error {
	if _, err := s.GetAuction(ctx, auctionID); err != nil {
		return err
	}
	return s.inTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Where("auctionId = ?", auctionID).Delete(models.PremiumTier{}).Error; err != nil {
			return err
		}
		for _, t := range tiers {
			t.Id = 0
			t.AuctionId = auctionID
			if err := tx.Create(t).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *GormStore) CreateRegistration(ctx context.Context, reg *models.Registration) error {
	if _, err := s.GetAuction(ctx, reg.AuctionId); err != nil {
		return err
	}
	return s.inTx(ctx, func(tx *gorm.DB) error {
		var count int
		err := tx.Model(&models.Registration{}).
			Where("auctionId = ? AND bidderId = ?", reg.AuctionId, reg.BidderId).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count > 0 {
			return models.ErrAlreadyRegistered
		}
		return tx.Create(reg).Error
	})
}

func (s *GormStore) GetRegistration(ctx context.Context, auctionID, bidderID uint32) (*models.Registration, error) {
	return getRegistration(s.db, auctionID, bidderID)
}

func getRegistration(db *gorm.DB, auctionID, bidderID uint32) (*models.Registration, error) {
	var reg models.Registration
	err := db.Where("auctionId = ? AND bidderId = ?", auctionID, bidderID).First(&reg).Error
	if err != nil {
		return nil, notFound(err, "Registration", bidderID)
	}
	return &reg, nil
}

func (s *GormStore) ApproveRegistration(ctx context.Context, auctionID, bidderID uint32) (*models.Registration, error) {
	var reg *models.Registration
	err := s.inTx(ctx, func(tx *gorm.DB) error {
		var err error
		if reg, err = getRegistration(s.forUpdate(tx), auctionID, bidderID); err != nil {
			return err
		}
		if reg.IsApproved {
			return nil
		}

		var approved []*models.Registration
		err = s.forUpdate(tx).
			Where("auctionId = ? AND isApproved = ?", auctionID, true).
			Find(&approved).Error
		if err != nil {
			return err
		}

		reg.IsApproved = true
		reg.Paddle = models.FirstPaddle + uint32(len(approved))
		return tx.Save(reg).Error
	})
	if err != nil {
		return nil, err
	}
	return reg, nil
}

func (s *GormStore) CreateUser(ctx context.Context, user *models.User) error {
	if _, err := s.GetUserByEmail(ctx, user.Email); err == nil {
		return models.AlreadyExistsError
	}
	return s.db.Create(user).Error
}

func (s *GormStore) GetUser(ctx context.Context, userID uint32) (*models.User, error) {
	var u models.User
	if err := s.db.First(&u, userID).Error; err != nil {
		return nil, notFound(err, "User", userID)
	}
	return &u, nil
}

func (s *GormStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.db.Where("email = ?", email).First(&u).Error; err != nil {
		return nil, notFound(err, "User", 0)
	}
	return &u, nil
}

func (s *GormStore) CreateInvoice(ctx context.Context, inv *models.Invoice) error {
	if _, err := s.GetInvoiceByLot(ctx, inv.LotId); err == nil {
		return models.AlreadyExistsError
	}
	return s.db.Create(inv).Error
}

func (s *GormStore) GetInvoiceByLot(ctx context.Context, lotID uint32) (*models.Invoice, error) {
	var inv models.Invoice
	if err := s.db.Where("lotId = ?", lotID).First(&inv).Error; err != nil {
		return nil, notFound(err, "Invoice", lotID)
	}
	return &inv, nil
}

// WithLotTx opens a transaction, locks the lot row (FOR UPDATE on mysql) and
// runs fn. sqlite3 serializes writers by itself.
func (s *GormStore) WithLotTx(ctx context.Context, lotID uint32, fn func(tx LotTx) error) error {
	var l = s.logger.WithFields(logrus.Fields{
		"method":      "WithLotTx",
		"param_lotId": lotID,
	})

	err := s.inTx(ctx, func(tx *gorm.DB) error {
		var lot models.Lot
		if err := s.forUpdate(tx).First(&lot, lotID).Error; err != nil {
			return notFound(err, "Lot", lotID)
		}
		var auction models.Auction
		if err := tx.First(&auction, lot.AuctionId).Error; err != nil {
			return notFound(err, "Auction", lot.AuctionId)
		}
		return fn(&gormLotTx{db: tx, lot: &lot, auction: &auction, clock: s.clock})
	})

	if err != nil {
		l.Debugf("Rolled back: %+v", err)
	}
	return err
}

func (s *GormStore) Close() error {
	return s.db.Close()
}

type gormLotTx struct {
	db      *gorm.DB
	lot     *models.Lot
	auction *models.Auction
	clock   utils.Clock
}

func (tx *gormLotTx) Lot() *models.Lot {
	return copyLot(tx.lot)
}

func (tx *gormLotTx) Auction() *models.Auction {
	c := *tx.auction
	return &c
}

func (tx *gormLotTx) Bids() ([]*models.Bid, error) {
	var bids []*models.Bid
	if err := tx.db.Where("lotId = ?", tx.lot.Id).Order("id").Find(&bids).Error; err != nil {
		return nil, err
	}
	models.SortByCreation(bids)
	return bids, nil
}

func (tx *gormLotTx) InsertBid(bid *models.Bid) error {
	if bid.LotId != tx.lot.Id {
		return fmt.Errorf("bid for lot %d inserted in transaction of lot %d", bid.LotId, tx.lot.Id)
	}
	if bid.CreatedAt.IsZero() {
		bid.CreatedAt = tx.clock.Now()
	}
	return tx.db.Create(bid).Error
}

func (tx *gormLotTx) UpdateBid(bid *models.Bid) error {
	return tx.db.Save(bid).Error
}

func (tx *gormLotTx) AbsenteeBids() ([]*models.AbsenteeBid, error) {
	var res []*models.AbsenteeBid
	err := tx.db.Where("lotId = ? AND isActive = ?", tx.lot.Id, true).Order("id").Find(&res).Error
	return res, err
}

func (tx *gormLotTx) SaveAbsenteeBid(ab *models.AbsenteeBid) error {
	if ab.Id == 0 {
		return tx.db.Create(ab).Error
	}
	return tx.db.Save(ab).Error
}

func (tx *gormLotTx) Retraction(bidID uint32) (*models.BidRetraction, error) {
	var r models.BidRetraction
	err := tx.db.Where("bidId = ?", bidID).First(&r).Error
	if gorm.IsRecordNotFoundError(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (tx *gormLotTx) InsertRetraction(r *models.BidRetraction) error {
	existing, err := tx.Retraction(r.BidId)
	if err != nil {
		return err
	}
	if existing != nil {
		return models.AlreadyRetractedError{BidId: r.BidId}
	}
	return tx.db.Create(r).Error
}

func (tx *gormLotTx) Registration(bidderID uint32) (*models.Registration, error) {
	return getRegistration(tx.db, tx.auction.Id, bidderID)
}

func (tx *gormLotTx) UpdateLot(lot *models.Lot) error {
	if lot.Id != tx.lot.Id {
		return fmt.Errorf("lot %d updated in transaction of lot %d", lot.Id, tx.lot.Id)
	}
	if err := tx.db.Save(lot).Error; err != nil {
		return err
	}
	tx.lot = copyLot(lot)
	return nil
}

