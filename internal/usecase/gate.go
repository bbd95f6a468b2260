package usecase

import (
	"context"
	"fmt"

	"BulletinDispatch/internal/domain"
	"BulletinDispatch/internal/grouping"
	"BulletinDispatch/internal/ports"
)

// Gate is the whole-batch pre-flight check run before any email is sent.
type Gate struct {
	repository ports.BulletinRepository
}

// NewGate builds a gate reading from repo.
func NewGate(repo ports.BulletinRepository) *Gate {
	return &Gate{repository: repo}
}

// Check inspects generated-unsent bulletins only. If any of them is still
// Pending it returns a *domain.BlockedError and no groups; otherwise it
// returns the dispatch groups.
func (g *Gate) Check(ctx context.Context) ([]domain.Group, error) {
	generated, unsent := true, false
	rows, err := g.repository.ListBulletins(ctx, ports.BulletinFilter{Generated: &generated, Sent: &unsent})
	if err != nil {
		return nil, fmt.Errorf("list generated unsent: %w", err)
	}

	blocked := map[string]int{}
	for _, b := range rows {
		if !b.Importance.Classified() {
			blocked[b.ClientKey]++
		}
	}
	if len(blocked) > 0 {
		return nil, &domain.BlockedError{Counts: blocked}
	}

	return grouping.Group(rows), nil
}
