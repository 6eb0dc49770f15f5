// Package historydb keeps a local record of recently opened projects so the
// CLI can offer them back without a server round trip.
package historydb

import (
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	dbmodel "planhub/cli/internal/db"
)

type Entry struct {
	ProjectID   string
	Name        string
	FirstOpened time.Time
	LastOpened  time.Time
	OpenCount   int
}

type Store struct {
	db *gorm.DB
}

// NewStore wraps the shared DB handle. Caller owns the handle's lifetime.
func NewStore(gdb *gorm.DB) (*Store, error) {
	if gdb == nil {
		return nil, errors.New("db is required")
	}
	return &Store{db: gdb}, nil
}

// RecordOpen upserts the project, bumping its open count and last-opened
// time. A fresh name replaces the stored one so renames propagate.
func (s *Store) RecordOpen(projectID, name string) error {
	if s == nil || s.db == nil {
		return errors.New("history store is not initialized")
	}
	id := strings.TrimSpace(projectID)
	if id == "" {
		return errors.New("project id is required")
	}
	now := time.Now().UTC().Unix()
	row := dbmodel.ProjectHistory{
		ProjectID:     id,
		Name:          strings.TrimSpace(name),
		FirstOpenedAt: now,
		LastOpenedAt:  now,
		OpenCount:     1,
	}
	assignments := map[string]any{
		"last_opened_at": now,
		"open_count":     gorm.Expr("project_history.open_count + 1"),
	}
	if row.Name != "" {
		assignments["name"] = row.Name
	}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "project_id"}},
		DoUpdates: clause.Assignments(assignments),
	}).Create(&row).Error
}

// List returns the most recently opened projects, newest first.
func (s *Store) List(limit int) ([]Entry, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("history store is not initialized")
	}
	if limit <= 0 {
		limit = 20
	}
	rows := make([]dbmodel.ProjectHistory, 0, limit)
	if err := s.db.Order("last_opened_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, Entry{
			ProjectID:   row.ProjectID,
			Name:        row.Name,
			FirstOpened: time.Unix(row.FirstOpenedAt, 0).UTC(),
			LastOpened:  time.Unix(row.LastOpenedAt, 0).UTC(),
			OpenCount:   row.OpenCount,
		})
	}
	return entries, nil
}

func (s *Store) Clear() error {
	if s == nil || s.db == nil {
		return errors.New("history store is not initialized")
	}
	return s.db.Where("1 = 1").Delete(&dbmodel.ProjectHistory{}).Error
}
