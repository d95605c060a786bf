package adapters

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"crypto_backend/internal/feature/coins/domain/entity"
	"crypto_backend/internal/feature/coins/usecase"
	"crypto_backend/internal/shared/signal"
)

type CoinModel struct {
	ID            int    `gorm:"primaryKey;autoIncrement:false"`
	Name          string `gorm:"size:64;not null;uniqueIndex:coin_name"`
	FullName      string `gorm:"size:255;not null;default:''"`
	ImageURL      string `gorm:"size:255;not null;default:''"`
	Symbol        string `gorm:"size:64;not null;default:''"`
	Price         float64
	SequenceIndex int `gorm:"not null;index:coin_sequence"`
}

func (CoinModel) TableName() string {
	return "coins"
}

type CoinDetailModel struct {
	SymbolKey          string  `gorm:"primaryKey;size:64"`
	CurrentVolume      float64 `gorm:"column:current_volume"`
	Last24Volume       float64 `gorm:"column:last24_volume"`
	CurrentVolumeQuote float64 `gorm:"column:current_volume_quote"`
	Last24VolumeQuote  float64 `gorm:"column:last24_volume_quote"`
}

func (CoinDetailModel) TableName() string {
	return "coin_details"
}

type CacheInfoModel struct {
	ID             int       `gorm:"primaryKey;autoIncrement:false"`
	LastUpdateTime time.Time `gorm:"not null"`
}

func (CacheInfoModel) TableName() string {
	return "cache_info"
}

// Models lists every table of the coin cache for migrations.
func Models() []any {
	return []any{&CoinModel{}, &CoinDetailModel{}, &CacheInfoModel{}}
}

type coinGorm struct {
	db      *gorm.DB
	changes *signal.Signal[entity.Change]
}

var _ usecase.CoinStore = (*coinGorm)(nil)

func NewCoinStore(db *gorm.DB) *coinGorm {
	return &coinGorm{db: db, changes: signal.New[entity.Change]()}
}

// RunInTransaction runs fn inside a database transaction and publishes the
// touched tables once it has committed.
func (s *coinGorm) RunInTransaction(ctx context.Context, fn func(tx usecase.StoreTx) error) error {
	var touched entity.Change
	err := s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		tx := &coinTx{db: db}
		if err := fn(tx); err != nil {
			return err
		}
		touched = tx.touched
		return nil
	})
	if err != nil {
		return err
	}
	if touched != 0 {
		s.changes.Publish(touched)
	}
	return nil
}

func (s *coinGorm) UpsertCoins(ctx context.Context, coins []entity.Coin) error {
	return s.RunInTransaction(ctx, func(tx usecase.StoreTx) error { return tx.UpsertCoins(ctx, coins) })
}

func (s *coinGorm) SetLastUpdate(ctx context.Context, at time.Time) error {
	return s.RunInTransaction(ctx, func(tx usecase.StoreTx) error { return tx.SetLastUpdate(ctx, at) })
}

func (s *coinGorm) LastUpdate(ctx context.Context) (time.Time, bool, error) {
	return (&coinTx{db: s.db}).LastUpdate(ctx)
}

func (s *coinGorm) DeleteAllCoins(ctx context.Context) error {
	return s.RunInTransaction(ctx, func(tx usecase.StoreTx) error { return tx.DeleteAllCoins(ctx) })
}

func (s *coinGorm) DeleteAllDetails(ctx context.Context) error {
	return s.RunInTransaction(ctx, func(tx usecase.StoreTx) error { return tx.DeleteAllDetails(ctx) })
}

func (s *coinGorm) CountCoins(ctx context.Context) (int, error) {
	return (&coinTx{db: s.db}).CountCoins(ctx)
}

func (s *coinGorm) UpsertDetail(ctx context.Context, d entity.CoinDetail) error {
	return s.RunInTransaction(ctx, func(tx usecase.StoreTx) error { return tx.UpsertDetail(ctx, d) })
}

func (s *coinGorm) ListCoins(ctx context.Context, offset, limit int) ([]entity.Coin, error) {
	var rows []CoinModel
	if err := s.db.WithContext(ctx).
		Order("sequence_index ASC").
		Offset(offset).
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]entity.Coin, 0, len(rows))
	for _, m := range rows {
		out = append(out, toCoin(m))
	}
	return out, nil
}

// FindCoinWithDetail joins the coin with the detail keyed by its name.
func (s *coinGorm) FindCoinWithDetail(ctx context.Context, name string) (*entity.CoinWithDetail, error) {
	var (
		coins   []CoinModel
		details []CoinDetailModel
	)
	err := s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		if err := db.Where("name = ?", name).Limit(1).Find(&coins).Error; err != nil {
			return err
		}
		if len(coins) == 0 {
			return nil
		}
		return db.Where("symbol_key = ?", name).Limit(1).Find(&details).Error
	})
	if err != nil {
		return nil, err
	}
	if len(coins) == 0 {
		return nil, nil
	}
	out := &entity.CoinWithDetail{Coin: toCoin(coins[0])}
	if len(details) > 0 {
		d := toDetail(details[0])
		out.Detail = &d
	}
	return out, nil
}

func (s *coinGorm) Changes() *signal.Signal[entity.Change] {
	return s.changes
}

// Ping checks that the database answers.
func (s *coinGorm) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// coinTx runs the store operations on one gorm handle, usually a transaction.
type coinTx struct {
	db      *gorm.DB
	touched entity.Change
}

func (tx *coinTx) UpsertCoins(ctx context.Context, coins []entity.Coin) error {
	if len(coins) == 0 {
		return nil
	}
	ms := make([]CoinModel, 0, len(coins))
	ids := make([]int, 0, len(coins))
	names := make([]string, 0, len(coins))
	for _, c := range coins {
		ms = append(ms, toCoinModel(c))
		ids = append(ids, c.ID)
		names = append(names, c.Name)
	}

	db := tx.db.WithContext(ctx)
	// A coin re-listed under a new id must not collide on the unique name.
	if err := db.Where("name IN ? AND id NOT IN ?", names, ids).Delete(&CoinModel{}).Error; err != nil {
		return fmt.Errorf("delete renamed coins: %w", err)
	}
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "full_name", "image_url", "symbol", "price", "sequence_index"}),
	}).Create(&ms).Error; err != nil {
		return fmt.Errorf("upsert coins: %w", err)
	}
	tx.touched |= entity.ChangeCoins
	return nil
}

func (tx *coinTx) SetLastUpdate(ctx context.Context, at time.Time) error {
	m := CacheInfoModel{ID: entity.CacheInfoID, LastUpdateTime: at.UTC()}
	return tx.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_update_time"}),
	}).Create(&m).Error
}

func (tx *coinTx) LastUpdate(ctx context.Context) (time.Time, bool, error) {
	var rows []CacheInfoModel
	if err := tx.db.WithContext(ctx).Where("id = ?", entity.CacheInfoID).Limit(1).Find(&rows).Error; err != nil {
		return time.Time{}, false, err
	}
	if len(rows) == 0 {
		return time.Time{}, false, nil
	}
	return rows[0].LastUpdateTime, true, nil
}

func (tx *coinTx) DeleteAllCoins(ctx context.Context) error {
	if err := tx.db.WithContext(ctx).Where("1 = 1").Delete(&CoinModel{}).Error; err != nil {
		return err
	}
	tx.touched |= entity.ChangeCoins
	return nil
}

func (tx *coinTx) DeleteAllDetails(ctx context.Context) error {
	if err := tx.db.WithContext(ctx).Where("1 = 1").Delete(&CoinDetailModel{}).Error; err != nil {
		return err
	}
	tx.touched |= entity.ChangeDetails
	return nil
}

func (tx *coinTx) CountCoins(ctx context.Context) (int, error) {
	var n int64
	if err := tx.db.WithContext(ctx).Model(&CoinModel{}).Count(&n).Error; err != nil {
		return 0, err
	}
	return int(n), nil
}

func (tx *coinTx) UpsertDetail(ctx context.Context, d entity.CoinDetail) error {
	m := CoinDetailModel{
		SymbolKey:          d.SymbolKey,
		CurrentVolume:      d.CurrentVolume,
		Last24Volume:       d.Last24Volume,
		CurrentVolumeQuote: d.CurrentVolumeQuote,
		Last24VolumeQuote:  d.Last24VolumeQuote,
	}
	if err := tx.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "symbol_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"current_volume", "last24_volume", "current_volume_quote", "last24_volume_quote"}),
	}).Create(&m).Error; err != nil {
		return err
	}
	tx.touched |= entity.ChangeDetails
	return nil
}

func toCoinModel(c entity.Coin) CoinModel {
	return CoinModel{
		ID:            c.ID,
		Name:          c.Name,
		FullName:      c.FullName,
		ImageURL:      c.ImageURL,
		Symbol:        c.Symbol,
		Price:         c.Price,
		SequenceIndex: c.SequenceIndex,
	}
}

func toCoin(m CoinModel) entity.Coin {
	return entity.Coin{
		ID:            m.ID,
		Name:          m.Name,
		FullName:      m.FullName,
		ImageURL:      m.ImageURL,
		Symbol:        m.Symbol,
		Price:         m.Price,
		SequenceIndex: m.SequenceIndex,
	}
}

func toDetail(m CoinDetailModel) entity.CoinDetail {
	return entity.CoinDetail{
		SymbolKey:          m.SymbolKey,
		CurrentVolume:      m.CurrentVolume,
		Last24Volume:       m.Last24Volume,
		CurrentVolumeQuote: m.CurrentVolumeQuote,
		Last24VolumeQuote:  m.Last24VolumeQuote,
	}
}
