// Package journal persists every ledger event to a SQL table so operators can
// page through a pool's history after the in-memory stream has rolled over.
package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"supernode/core/events"
	"supernode/core/types"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// Record is one journaled event.
type Record struct {
	Seq        uint64    `gorm:"primaryKey;autoIncrement"`
	ID         uuid.UUID `gorm:"type:uuid;uniqueIndex"`
	Type       string    `gorm:"index;not null"`
	Pool       string    `gorm:"index"`
	Attributes string    `gorm:"type:text;not null"`
	CreatedAt  time.Time
}

// TableName pins the table name independent of the struct name.
func (Record) TableName() string { return "supernode_events" }

// Event decodes the record back into its event form.
func (r Record) Event() (*types.Event, error) {
	attrs := map[string]string{}
	if err := json.Unmarshal([]byte(r.Attributes), &attrs); err != nil {
		return nil, fmt.Errorf("journal: decode attributes of %s: %w", r.ID, err)
	}
	return &types.Event{Type: r.Type, Attributes: attrs}, nil
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Pool     string
	Type     string
	AfterSeq uint64
	Limit    int
}

// Store writes and queries journaled events.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
	now    func() time.Time
}

// Open connects to dsn. postgres:// and postgresql:// DSNs use the Postgres
// driver; anything else is treated as a SQLite path or URI.
func Open(dsn string) (*gorm.DB, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("journal: dsn required")
	}
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}
	lower := strings.ToLower(dsn)
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return gorm.Open(postgres.Open(dsn), cfg)
	}
	return gorm.Open(sqlite.Open(dsn), cfg)
}

// AutoMigrate creates or updates the journal schema.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Record{})
}

// New migrates db and returns a store over it.
func New(db *gorm.DB, log *slog.Logger) (*Store, error) {
	if db == nil {
		return nil, errors.New("journal: nil database")
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("journal: migrate: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Store{db: db, logger: log.With("component", "journal"), now: time.Now}, nil
}

// Emit implements events.Emitter. Write failures are logged, never returned,
// so the ledger operation that produced the event is not affected.
func (s *Store) Emit(evt events.Event) {
	raw, ok := events.Unwrap(evt)
	if s == nil || !ok {
		return
	}
	if _, err := s.Append(context.Background(), raw); err != nil {
		s.logger.Error("journal append failed", "type", raw.Type, "error", err)
	}
}

// Append stores evt and returns the persisted record.
func (s *Store) Append(ctx context.Context, evt *types.Event) (*Record, error) {
	if evt == nil {
		return nil, errors.New("journal: nil event")
	}
	attrs := evt.Attributes
	if attrs == nil {
		attrs = map[string]string{}
	}
	encoded, err := json.Marshal(attrs)
	if err != nil {
		return nil, err
	}
	rec := &Record{
		ID:         uuid.New(),
		Type:       evt.Type,
		Pool:       strings.ToLower(evt.Attr("pool")),
		Attributes: string(encoded),
		CreatedAt:  s.now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, err
	}
	return rec, nil
}

// List returns records matching filter in sequence order.
func (s *Store) List(ctx context.Context, filter Filter) ([]Record, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	query := s.db.WithContext(ctx).Model(&Record{}).Where("seq > ?", filter.AfterSeq)
	if pool := strings.TrimSpace(filter.Pool); pool != "" {
		query = query.Where("pool = ?", strings.ToLower(pool))
	}
	if typ := strings.TrimSpace(filter.Type); typ != "" {
		query = query.Where("type = ?", typ)
	}
	var out []Record
	if err := query.Order("seq ASC").Limit(limit).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
