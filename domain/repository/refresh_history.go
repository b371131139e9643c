package repository

import (
	"context"

	"github.com/Methodus-dev/methodus-shorts-planner/domain/model"
)

// IRefreshHistory keeps a log of finished refresh runs.
type IRefreshHistory interface {
	Record(ctx context.Context, run model.RefreshRun) error
	Recent(ctx context.Context, limit int) ([]model.RefreshRun, error)
}

// IRefreshNotifier is told about every finished refresh run.
type IRefreshNotifier interface {
	NotifyRefresh(ctx context.Context, event model.RefreshEvent) error
}
