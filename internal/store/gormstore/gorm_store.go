// Package gormstore persists bracket plans in SQLite via Gorm.
package gormstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"gttbracket/internal/bracket"
)

// planModel is the storage row for one plan. Legs are opaque JSON: their
// shape changes with the domain model and the store never queries into them.
type planModel struct {
	ID             string `gorm:"primaryKey;size:64"`
	Symbol         string `gorm:"size:64;index"`
	Exchange       string `gorm:"size:16"`
	Side           string `gorm:"size:8"`
	EntryPrice     float64
	TotalQuantity  int
	ExitedQuantity int
	ProductType    string `gorm:"size:32"`
	Remarks        string
	Stops          datatypes.JSON
	Targets        datatypes.JSON
	PlacedAt       *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (planModel) TableName() string { return "bracket_plans" }

// Store implements bracket.PlanStore on SQLite.
type Store struct {
	db *gorm.DB
}

var _ bracket.PlanStore = (*Store)(nil)

// New opens (creating if needed) the plan database at path.
func New(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("plan store path cannot be empty")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&planModel{}); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite + WAL: a little parallelism for HTTP reads, low lock contention.
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Save upserts the plan by identifier.
func (s *Store) Save(ctx context.Context, p *bracket.Plan) error {
	row, err := toModel(p)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"symbol", "exchange", "side", "entry_price", "total_quantity",
			"exited_quantity", "product_type", "remarks", "stops", "targets",
			"placed_at", "updated_at",
		}),
	}).Create(row).Error
}

// Get loads one plan by identifier.
func (s *Store) Get(ctx context.Context, id string) (*bracket.Plan, error) {
	var row planModel
	err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, bracket.ErrPlanNotFound
	}
	if err != nil {
		return nil, err
	}
	return fromModel(&row)
}

// List returns all plans, newest first.
func (s *Store) List(ctx context.Context) ([]*bracket.Plan, error) {
	var rows []planModel
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	plans := make([]*bracket.Plan, 0, len(rows))
	for i := range rows {
		p, err := fromModel(&rows[i])
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plans, nil
}

// Delete removes one plan by identifier.
func (s *Store) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&planModel{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return bracket.ErrPlanNotFound
	}
	return nil
}

func toModel(p *bracket.Plan) (*planModel, error) {
	stops, err := json.Marshal(p.Stops)
	if err != nil {
		return nil, fmt.Errorf("encoding stop legs: %w", err)
	}
	targets, err := json.Marshal(p.Targets)
	if err != nil {
		return nil, fmt.Errorf("encoding target legs: %w", err)
	}
	return &planModel{
		ID:             p.ID,
		Symbol:         p.Symbol,
		Exchange:       p.Exchange,
		Side:           string(p.Side),
		EntryPrice:     p.EntryPrice,
		TotalQuantity:  p.TotalQuantity,
		ExitedQuantity: p.ExitedQuantity,
		ProductType:    p.ProductType,
		Remarks:        p.Remarks,
		Stops:          datatypes.JSON(stops),
		Targets:        datatypes.JSON(targets),
		PlacedAt:       p.PlacedAt,
	}, nil
}

func fromModel(row *planModel) (*bracket.Plan, error) {
	p := &bracket.Plan{
		ID:             row.ID,
		Symbol:         row.Symbol,
		Exchange:       row.Exchange,
		Side:           bracket.Side(row.Side),
		EntryPrice:     row.EntryPrice,
		TotalQuantity:  row.TotalQuantity,
		ExitedQuantity: row.ExitedQuantity,
		ProductType:    row.ProductType,
		Remarks:        row.Remarks,
		PlacedAt:       row.PlacedAt,
	}
	if len(row.Stops) > 0 {
		if err := json.Unmarshal(row.Stops, &p.Stops); err != nil {
			return nil, fmt.Errorf("decoding stop legs of %s: %w", row.ID, err)
		}
	}
	if len(row.Targets) > 0 {
		if err := json.Unmarshal(row.Targets, &p.Targets); err != nil {
			return nil, fmt.Errorf("decoding target legs of %s: %w", row.ID, err)
		}
	}
	return p, nil
}
