package persistence

import (
	"context"

	"github.com/erp/marketsync/internal/domain/integration"
	"github.com/erp/marketsync/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormSyncRunRepository implements integration.SyncRunRepository using GORM
type GormSyncRunRepository struct {
	db *gorm.DB
}

// NewGormSyncRunRepository creates a new GormSyncRunRepository
func NewGormSyncRunRepository(db *gorm.DB) *GormSyncRunRepository {
	return &GormSyncRunRepository{db: db}
}

// Save upserts the run and replaces its log entries
func (r *GormSyncRunRepository) Save(ctx context.Context, run *integration.SyncRun) error {
	model := models.SyncRunModelFromDomain(run)
	entries := models.SyncLogEntryModelsFromDomain(run.ID, run.Entries)

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"status", "finished_at", "succeeded", "drafts", "skipped", "failed", "error"}),
		}).Create(model).Error; err != nil {
			return err
		}
		if err := tx.Where("run_id = ?", run.ID).Delete(&models.SyncLogEntryModel{}).Error; err != nil {
			return err
		}
		if len(entries) == 0 {
			return nil
		}
		return tx.CreateInBatches(entries, 500).Error
	})
}

// FindByID loads a run with its log entries
func (r *GormSyncRunRepository) FindByID(ctx context.Context, id uuid.UUID) (*integration.SyncRun, error) {
	var model models.SyncRunModel
	if err := r.db.WithContext(ctx).
		Preload("Entries", func(db *gorm.DB) *gorm.DB { return db.Order("seq") }).
		First(&model, "id = ?", id).Error; err != nil {
		return nil, translateError(err, "sync run %s", id)
	}
	return model.ToDomain(), nil
}

// FindRecent returns the latest runs of a kind, newest first, without their
// log entries. An empty kind matches every kind.
func (r *GormSyncRunRepository) FindRecent(ctx context.Context, kind integration.RunKind, limit int) ([]integration.SyncRun, error) {
	if limit <= 0 {
		limit = 20
	}
	query := r.db.WithContext(ctx).Model(&models.SyncRunModel{})
	if kind != "" {
		query = query.Where("kind = ?", kind.String())
	}

	var rows []models.SyncRunModel
	if err := query.Order("started_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	runs := make([]integration.SyncRun, len(rows))
	for i := range rows {
		runs[i] = *rows[i].ToDomain()
	}
	return runs, nil
}
