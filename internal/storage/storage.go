// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package storage writes published sweeps to SQLite behind a bounded queue
// and prunes rows past the retention window.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"

	"github.com/Thermoquad/wellgate/internal/record"
)

// Table names
const (
	TableBasic        = "basic_data"
	TableDiagramBasic = "diagram_basic_data"
	TableDiagram      = "diagram_data"
	TableWater        = "water_data"
	TableValve        = "valve_data"
)

// Tables lists every table the sink writes
var Tables = []string{TableBasic, TableDiagramBasic, TableDiagram, TableWater, TableValve}

const batchSize = 200

// RegisterRow is one stored register value
type RegisterRow struct {
	ID            uint      `gorm:"primaryKey"`
	Timestamp     time.Time `gorm:"index"`
	SiteID        uint8     `gorm:"index"`
	RegisterIndex uint16
	Value         uint16
	SweepID       string `gorm:"size:36;index"`
}

// Options configures the sink
type Options struct {
	Path          string
	Retention     time.Duration
	PruneInterval time.Duration
	QueueSize     int
}

// Sink stores snapshots handed to it by the acquisition loop
type Sink struct {
	db     *gorm.DB
	opts   Options
	logger *slog.Logger

	mu      sync.RWMutex
	closed  bool
	q       chan record.Snapshot
	wg      sync.WaitGroup
	dropped atomic.Uint64

	// owned by the writer goroutine
	written   map[uint8]time.Time
	lastPrune time.Time
}

// Open opens the database, migrates the tables and starts the writer
func Open(opts Options, log *slog.Logger) (*Sink, error) {
	if log == nil {
		log = slog.Default()
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 16
	}

	gormLog := logger.New(
		slog.NewLogLogger(log.Handler(), slog.LevelWarn),
		logger.Config{
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	dialector := sqlite.Dialector{
		DriverName: "sqlite",
		DSN:        opts.Path,
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", opts.Path, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if err := configureSQLite(sqlDB); err != nil {
		sqlDB.Close()
		return nil, err
	}

	for _, table := range Tables {
		if err := db.Table(table).AutoMigrate(&RegisterRow{}); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("migrate %s: %w", table, err)
		}
	}

	s := &Sink{
		db:      db,
		opts:    opts,
		logger:  log,
		q:       make(chan record.Snapshot, opts.QueueSize),
		written: make(map[uint8]time.Time),
	}
	s.wg.Add(1)
	go s.run()

	log.Info("storage opened", "path", opts.Path, "retention", opts.Retention)
	return s, nil
}

func configureSQLite(sqlDB *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA temp_store=memory",
	}
	for _, p := range pragmas {
		if _, err := sqlDB.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

// Handle queues a snapshot, dropping it when the queue is full
func (s *Sink) Handle(snap record.Snapshot) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}

	select {
	case s.q <- snap:
	default:
		s.dropped.Add(1)
		s.logger.Warn("storage queue full, dropping sweep", "sweep", snap.Sweep)
	}
}

// Dropped returns the number of snapshots dropped on a full queue
func (s *Sink) Dropped() uint64 {
	return s.dropped.Load()
}

func (s *Sink) run() {
	defer s.wg.Done()
	for snap := range s.q {
		if err := s.Write(snap); err != nil {
			s.logger.Error("storing sweep failed", "sweep", snap.Sweep, "err", err)
		}

		now := time.Now()
		if s.opts.Retention > 0 && now.Sub(s.lastPrune) >= s.opts.PruneInterval {
			if n, err := s.Prune(now); err != nil {
				s.logger.Error("pruning failed", "err", err)
			} else if n > 0 {
				s.logger.Info("pruned expired rows", "rows", n)
			}
			s.lastPrune = now
		}
	}
}

// Write stores the records of a snapshot captured since they were last
// written. Only the writer goroutine, or a caller not running it, may call it.
func (s *Sink) Write(snap record.Snapshot) error {
	sweepID := uuid.NewString()
	rows := make(map[string][]RegisterRow)

	for id, r := range snap.Sites {
		if !r.Valid() || !r.Captured.After(s.written[id]) {
			continue
		}
		add := func(table string, g record.Group, regs []uint16) {
			for i, v := range regs {
				rows[table] = append(rows[table], RegisterRow{
					Timestamp:     r.Captured,
					SiteID:        id,
					RegisterIndex: g.Start + uint16(i),
					Value:         v,
					SweepID:       sweepID,
				})
			}
		}
		add(TableBasic, record.WellBase, r.WellBase)
		add(TableDiagramBasic, record.DiagramBasic, r.DiagramBasic)
		add(TableDiagram, record.Diagram, r.Diagram)
		add(TableWater, record.Water, r.Water)
		add(TableValve, record.Valve, r.Valve)
		s.written[id] = r.Captured
	}

	var errs []error
	for table, batch := range rows {
		if err := s.db.Table(table).CreateInBatches(batch, batchSize).Error; err != nil {
			errs = append(errs, fmt.Errorf("insert %s: %w", table, err))
		}
	}
	return errors.Join(errs...)
}

// Prune deletes rows older than the retention window and returns the number
// of rows removed
func (s *Sink) Prune(now time.Time) (int64, error) {
	cutoff := now.Add(-s.opts.Retention)
	var total int64
	for _, table := range Tables {
		res := s.db.Table(table).Where("timestamp < ?", cutoff).Delete(&RegisterRow{})
		if res.Error != nil {
			return total, fmt.Errorf("prune %s: %w", table, res.Error)
		}
		total += res.RowsAffected
	}
	return total, nil
}

// Count returns the number of rows in a table
func (s *Sink) Count(table string) (int64, error) {
	var n int64
	err := s.db.Table(table).Count(&n).Error
	return n, err
}

// Close drains the queue and closes the database
func (s *Sink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.q)
	s.mu.Unlock()

	s.wg.Wait()
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
