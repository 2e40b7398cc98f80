package metricsink

import (
	"context"

	"github.com/jinzhu/gorm"
	_ "github.com/go-sql-driver/mysql"

	"github.com/kardelitaitu/testnet-spammer/ids"
)

// taskMetricRecord is task_metrics's gorm model (spec.md §6: three
// append-only tables, each keyed by autoincrement id with a timestamp
// column).
type taskMetricRecord struct {
	ID            uint64 `gorm:"primary_key;auto_increment"`
	RowID         string `gorm:"index"`
	WorkerID      string
	WalletAddress string `gorm:"index"`
	TaskName      string `gorm:"index"`
	Status        string
	Message       string
	DurationMS    uint64
	Timestamp     int64
}

func (taskMetricRecord) TableName() string { return "task_metrics" }

type createdAssetRecord struct {
	ID            uint64 `gorm:"primary_key;auto_increment"`
	RowID         string
	WalletAddress string `gorm:"index"`
	AssetAddress  string
	Kind          string
	Name          string
	Symbol        string
	Timestamp     int64
}

func (createdAssetRecord) TableName() string { return "created_assets" }

type createdCounterContractRecord struct {
	ID              uint64 `gorm:"primary_key;auto_increment"`
	RowID           string
	WalletAddress   string `gorm:"index"`
	ContractAddress string
	Timestamp       int64
}

func (createdCounterContractRecord) TableName() string { return "created_counter_contracts" }

// SQLStore is the primary RowStore backend: MySQL via gorm, connection
// pool bounded by db_max_connections (spec.md §5's resource ceiling).
type SQLStore struct {
	db *gorm.DB
}

// OpenSQLStore opens dsn (a go-sql-driver/mysql DSN) and runs
// AutoMigrate for the three append-only tables.
func OpenSQLStore(dsn string, maxConnections int) (*SQLStore, error) {
	db, err := gorm.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	if maxConnections <= 0 {
		maxConnections = 5
	}
	db.DB().SetMaxOpenConns(maxConnections)

	if err := db.AutoMigrate(
		&taskMetricRecord{},
		&createdAssetRecord{},
		&createdCounterContractRecord{},
	).Error; err != nil {
		db.Close()
		return nil, err
	}
	return &SQLStore{db: db}, nil
}

// AppendMetricBatch implements RowStore, writing rows in one transaction.
func (s *SQLStore) AppendMetricBatch(ctx context.Context, rows []Row) error {
	tx := s.db.Begin()
	for _, r := range rows {
		rec := taskMetricRecord{
			RowID:         r.ID,
			WorkerID:      r.WorkerID,
			WalletAddress: r.WalletAddress,
			TaskName:      r.TaskName,
			Status:        string(r.Status),
			Message:       r.Message,
			DurationMS:    r.DurationMS,
			Timestamp:     r.Timestamp.UnixNano(),
		}
		if err := tx.Create(&rec).Error; err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit().Error
}

// AppendCreatedAsset implements RowStore.
func (s *SQLStore) AppendCreatedAsset(ctx context.Context, a CreatedAsset) error {
	rec := createdAssetRecord{
		RowID:         ids.NewMetricRowID(),
		WalletAddress: a.WalletAddress,
		AssetAddress:  a.AssetAddress,
		Kind:          a.Kind,
		Name:          a.Name,
		Symbol:        a.Symbol,
		Timestamp:     a.Timestamp.UnixNano(),
	}
	return s.db.Create(&rec).Error
}

// AppendCreatedCounterContract implements RowStore.
func (s *SQLStore) AppendCreatedCounterContract(ctx context.Context, c CreatedCounterContract) error {
	rec := createdCounterContractRecord{
		RowID:           ids.NewMetricRowID(),
		WalletAddress:   c.WalletAddress,
		ContractAddress: c.ContractAddress,
		Timestamp:       c.Timestamp.UnixNano(),
	}
	return s.db.Create(&rec).Error
}

// Close implements RowStore.
func (s *SQLStore) Close() error { return s.db.Close() }
