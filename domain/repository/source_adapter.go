package repository

import (
	"context"

	"github.com/Methodus-dev/methodus-shorts-planner/domain/model"
)

// ISourceAdapter fetches candidate trending videos from one origin.
// Implementations never return errors: every failure is reported in the outcome.
type ISourceAdapter interface {
	Name() string
	Fetch(ctx context.Context, target int, params model.FetchParams) ([]model.RawItem, model.FetchOutcome)
}
