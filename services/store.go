package services

import (
	"context"
	"time"

	"strategy-game-server/engine"
	"strategy-game-server/models"
)

// UpdateFunc receives the committed state and returns the next one. It must
// not modify its argument. Returning an error aborts the transaction.
type UpdateFunc func(st *engine.State) (*engine.State, error)

// Store persists game aggregates. Update runs fn and writes its result as a
// single commit; concurrent Updates on one game are serialised.
type Store interface {
	CreateGame(ctx context.Context, st *engine.State) error
	Load(ctx context.Context, gameID string) (*engine.State, error)
	Update(ctx context.Context, gameID string, fn UpdateFunc) (*engine.State, error)

	ListGames(ctx context.Context, activeOnly bool) ([]models.GameSummary, error)
	TurnHistory(ctx context.Context, gameID string) ([]models.Turn, error)

	// IdleGames lists active games untouched since before.
	IdleGames(ctx context.Context, before time.Time) ([]string, error)
	// PendingArchive lists inactive games not yet archived.
	PendingArchive(ctx context.Context) ([]string, error)
	MarkArchived(ctx context.Context, gameID string, at time.Time) error
}
