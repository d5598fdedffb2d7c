package usecase

import (
	"context"

	"github.com/team11/cloudrun-deployer/pkg/domain/interfaces"
	"github.com/team11/cloudrun-deployer/pkg/domain/model"
	"github.com/team11/cloudrun-deployer/pkg/domain/types"
)

const (
	defaultRunLimit = 20
	maxRunLimit     = 100
)

type runUseCase struct {
	repo interfaces.RunRepository
}

// NewRuns creates a new instance of RunUseCase
func NewRuns(repo interfaces.RunRepository) interfaces.RunUseCase {
	return &runUseCase{repo: repo}
}

// GetRun returns the run, or nil if it does not exist
func (uc *runUseCase) GetRun(ctx context.Context, id types.RunID) (*model.Run, error) {
	return uc.repo.GetRun(ctx, id)
}

// ListRuns returns recent runs, newest first. limit is clamped to 1..100 and
// defaults to 20.
func (uc *runUseCase) ListRuns(ctx context.Context, limit int) ([]*model.Run, error) {
	switch {
	case limit <= 0:
		limit = defaultRunLimit
	case limit > maxRunLimit:
		limit = maxRunLimit
	}
	return uc.repo.ListRuns(ctx, limit)
}
