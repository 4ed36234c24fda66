package workers

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand/v2"
	"testing"
	"time"

	"strategy-game-server/engine"
	"strategy-game-server/logger"
	"strategy-game-server/models"
	"strategy-game-server/services"
)

func init() {
	logger.Silence()
}

type fakeUploader struct {
	objects map[string][]byte
	err     error
}

func (f *fakeUploader) Upload(_ context.Context, key string, body []byte, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if f.objects == nil {
		f.objects = map[string][]byte{}
	}
	f.objects[key] = body
	return "https://cdn.test/" + key, nil
}

func finishedGame(t *testing.T, store services.Store) *models.Game {
	t.Helper()
	ctx := context.Background()
	svc := services.NewGameService(store, nil, services.Options{
		Rules: engine.DefaultRules(),
		Rand:  rand.New(rand.NewPCG(5, 6)),
	})
	game, err := svc.CreateGame(ctx, "alice", "Last Stand", 10, 2)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.SubmitTurn(ctx, "alice", game.ID, nil); err != nil {
		t.Fatal(err)
	}
	if err := svc.LeaveGame(ctx, "alice", game.ID); err != nil {
		t.Fatal(err)
	}
	return game
}

func TestArchiveWorkerRunOnce(t *testing.T) {
	store := services.NewMemoryStore()
	game := finishedGame(t, store)
	up := &fakeUploader{}
	w := NewArchiveWorker(store, up, engine.DefaultRules())
	at := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	w.Now = func() time.Time { return at }

	n, err := w.RunOnce(context.Background())
	if err != nil || n != 1 {
		t.Fatalf("archived %d, err %v", n, err)
	}

	key := ArchiveKey(*game)
	raw, ok := up.objects[key]
	if !ok {
		t.Fatalf("no object at %s; have %v", key, up.objects)
	}
	var doc Archive
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatal(err)
	}
	if doc.Game.ID != game.ID || doc.Game.IsActive || len(doc.Players) != 1 || len(doc.Turns) != 1 {
		t.Fatalf("unexpected archive %+v", doc)
	}
	if !doc.ArchivedAt.Equal(at) {
		t.Fatalf("archived_at %v", doc.ArchivedAt)
	}

	st, _ := store.Load(context.Background(), game.ID)
	if st.Game.ArchivedAt == nil {
		t.Fatal("game not marked archived")
	}
	if n, _ := w.RunOnce(context.Background()); n != 0 {
		t.Fatalf("re-archived %d games", n)
	}
}

func TestArchiveWorkerUploadFailureLeavesPending(t *testing.T) {
	store := services.NewMemoryStore()
	finishedGame(t, store)
	w := NewArchiveWorker(store, &fakeUploader{err: errors.New("bucket unavailable")}, engine.DefaultRules())

	n, err := w.RunOnce(context.Background())
	if err != nil || n != 0 {
		t.Fatalf("archived %d, err %v", n, err)
	}
	pending, _ := store.PendingArchive(context.Background())
	if len(pending) != 1 {
		t.Fatalf("pending %v", pending)
	}
}

func TestArchiveKey(t *testing.T) {
	if got := ArchiveKey(models.Game{ID: "abc", Slug: "duel-abc"}); got != "archives/duel-abc.json" {
		t.Fatal(got)
	}
	if got := ArchiveKey(models.Game{ID: "abc"}); got != "archives/abc.json" {
		t.Fatal(got)
	}
}
