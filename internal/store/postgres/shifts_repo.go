package postgres

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"slotline/internal/domain"
)

type ShiftRepo struct {
	db *bun.DB
}

func NewShiftRepo(db *bun.DB) *ShiftRepo {
	return &ShiftRepo{db: db}
}

func (r *ShiftRepo) WindowsFor(ctx context.Context, providerID string, horizonStart, horizonEnd time.Time) ([]domain.Shift, error) {
	return listShifts(ctx, r.db, providerID, horizonStart, horizonEnd)
}

func listShifts(ctx context.Context, db bun.IDB, providerID string, windowStart, windowEnd time.Time) ([]domain.Shift, error) {
	var rows []domain.Shift
	err := db.NewSelect().
		Model(&rows).
		Where("provider_id = ?", providerID).
		Where("start_time < ?", windowEnd).
		Where("end_time > ?", windowStart).
		OrderExpr("start_time ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
