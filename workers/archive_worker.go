package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"strategy-game-server/engine"
	"strategy-game-server/logger"
	"strategy-game-server/models"
	"strategy-game-server/services"
)

// Uploader stores an object and returns where it can be fetched.
type Uploader interface {
	Upload(ctx context.Context, key string, body []byte, contentType string) (string, error)
}

// Archive is the document written for a finished game.
type Archive struct {
	Game       engine.GameView     `json:"game"`
	Players    []engine.PlayerView `json:"players"`
	Turns      []models.Turn       `json:"turns"`
	ArchivedAt time.Time           `json:"archived_at"`
}

// ArchiveWorker exports finished games to object storage.
type ArchiveWorker struct {
	Store    services.Store
	Uploader Uploader
	Rules    engine.Rules
	Now      func() time.Time
	log      *logrus.Entry
}

func NewArchiveWorker(store services.Store, uploader Uploader, rules engine.Rules) *ArchiveWorker {
	return &ArchiveWorker{
		Store:    store,
		Uploader: uploader,
		Rules:    rules,
		Now:      func() time.Time { return time.Now().UTC() },
		log:      logger.Component("archive_worker"),
	}
}

// ArchiveKey is the object key for a game's archive.
func ArchiveKey(g models.Game) string {
	name := g.Slug
	if name == "" {
		name = g.ID
	}
	return fmt.Sprintf("archives/%s.json", name)
}

// Poll archives pending games every interval until ctx is cancelled.
func (w *ArchiveWorker) Poll(ctx context.Context, interval time.Duration) {
	w.log.WithField("interval", interval.String()).Info("📦 Starting archive polling...")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("Archive polling stopped.")
			return
		case <-ticker.C:
			n, err := w.RunOnce(ctx)
			if err != nil {
				w.log.WithError(err).Error("❌ Error archiving games")
				continue
			}
			if n > 0 {
				w.log.Infof("✅ Archived %d game(s).", n)
			}
		}
	}
}

// RunOnce archives every inactive game not yet archived. A failure on one
// game is logged and leaves it pending for the next pass.
func (w *ArchiveWorker) RunOnce(ctx context.Context) (int, error) {
	ids, err := w.Store.PendingArchive(ctx)
	if err != nil {
		return 0, fmt.Errorf("list pending archives: %w", err)
	}

	archived := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			return archived, ctx.Err()
		}
		if err := w.archive(ctx, id); err != nil {
			w.log.WithError(err).WithField("game_id", id).Warn("Failed to archive game.")
			continue
		}
		archived++
	}
	return archived, nil
}

func (w *ArchiveWorker) archive(ctx context.Context, gameID string) error {
	st, err := w.Store.Load(ctx, gameID)
	if err != nil {
		return err
	}
	turns, err := w.Store.TurnHistory(ctx, gameID)
	if err != nil {
		return err
	}

	now := w.Now()
	view := engine.BuildView(w.Rules, st, "", false)
	body, err := json.Marshal(Archive{
		Game:       view.Game,
		Players:    view.Players,
		Turns:      turns,
		ArchivedAt: now,
	})
	if err != nil {
		return err
	}

	url, err := w.Uploader.Upload(ctx, ArchiveKey(st.Game), body, "application/json")
	if err != nil {
		return err
	}
	if err := w.Store.MarkArchived(ctx, gameID, now); err != nil {
		return err
	}
	w.log.WithFields(logrus.Fields{"game_id": gameID, "url": url}).Info("Game archived.")
	return nil
}
