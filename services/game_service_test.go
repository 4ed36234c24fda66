package services

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand/v2"
	"strings"
	"sync"
	"testing"
	"time"

	"strategy-game-server/engine"
	"strategy-game-server/logger"
	"strategy-game-server/models"
)

func init() {
	logger.Silence()
}

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type recorder struct {
	mu     sync.Mutex
	events []engine.Event
}

func (r *recorder) Publish(events ...engine.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
}

func (r *recorder) count(typ engine.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == typ {
			n++
		}
	}
	return n
}

func newTestService(t *testing.T, store Store) (*GameService, *recorder) {
	t.Helper()
	rec := &recorder{}
	svc := NewGameService(store, rec, Options{
		Rules: engine.DefaultRules(),
		Rand:  rand.New(rand.NewPCG(1, 2)),
	})
	svc.Now = func() time.Time { return t0 }
	return svc, rec
}

func moveAction(t *testing.T, unitID string, x, y int) []json.RawMessage {
	t.Helper()
	b, err := json.Marshal(map[string]any{"type": "move_unit", "unit_id": unitID, "x": x, "y": y})
	if err != nil {
		t.Fatal(err)
	}
	return []json.RawMessage{b}
}

// flatten makes the map passable everywhere so scripted moves are legal.
func flatten(t *testing.T, store Store, gameID string) {
	t.Helper()
	_, err := store.Update(context.Background(), gameID, func(st *engine.State) (*engine.State, error) {
		next := st.Clone()
		for y := range next.Game.Terrain {
			for x := range next.Game.Terrain[y] {
				next.Game.Terrain[y][x] = models.TerrainPlains
			}
		}
		return next, nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestCreateGame(t *testing.T) {
	svc, rec := newTestService(t, NewMemoryStore())
	ctx := context.Background()

	game, err := svc.CreateGame(ctx, "alice", "Friday Skirmish!", 12, 3)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(game.Slug, "friday-skirmish-") {
		t.Fatalf("slug %q", game.Slug)
	}
	if rec.count(engine.EventEntityChanged) != 2 {
		t.Fatal("starting kit events not published")
	}

	view, err := svc.GetState(ctx, "alice", game.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(view.Players) != 1 || view.YourPlayerID == "" {
		t.Fatalf("creator not seated: %+v", view.Players)
	}

	if _, err := svc.CreateGame(ctx, "alice", "tiny", 5, 2); !errors.Is(err, engine.ErrInvalidConfig) {
		t.Fatalf("got %v", err)
	}
}

func TestServiceRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	svc, rec := newTestService(t, store)
	ctx := context.Background()

	game, err := svc.CreateGame(ctx, "alice", "duel", 10, 2)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.JoinGame(ctx, "bob", game.ID); err != nil {
		t.Fatal(err)
	}
	flatten(t, store, game.ID)

	view, _ := svc.GetState(ctx, "alice", game.ID)
	var aliceUnit, bobUnit models.Unit
	for _, u := range view.Units {
		if u.PlayerID == view.YourPlayerID {
			aliceUnit = u
		} else {
			bobUnit = u
		}
	}

	before := rec.count(engine.EventTurnCompleted)
	if _, err := svc.SubmitTurn(ctx, "bob", game.ID, nil); !errors.Is(err, engine.ErrNotYourTurn) {
		t.Fatalf("bob first: %v", err)
	}
	if rec.count(engine.EventTurnCompleted) != before {
		t.Fatal("rejected submission published events")
	}

	res, err := svc.SubmitTurn(ctx, "alice", game.ID, moveAction(t, aliceUnit.ID, aliceUnit.X+2, aliceUnit.Y))
	if err != nil {
		t.Fatal(err)
	}
	if res.RoundAdvanced {
		t.Fatal("round advanced with bob pending")
	}
	res, err = svc.SubmitTurn(ctx, "bob", game.ID, moveAction(t, bobUnit.ID, bobUnit.X, bobUnit.Y-1))
	if err != nil {
		t.Fatal(err)
	}
	if !res.RoundAdvanced || res.CurrentTurn != 2 {
		t.Fatalf("round should advance: %+v", res)
	}

	view, _ = svc.GetState(ctx, "bob", game.ID)
	for _, p := range view.Players {
		if p.Resources != 105 {
			t.Fatalf("resources %d", p.Resources)
		}
	}
	for _, u := range view.Units {
		if u.HasMoved {
			t.Fatal("flags not reset")
		}
	}

	history, err := svc.TurnHistory(ctx, game.ID)
	if err != nil || len(history) != 2 {
		t.Fatalf("history %d, %v", len(history), err)
	}
	if rec.count(engine.EventTurnCompleted) != before+2 {
		t.Fatal("turn events missing")
	}
}

func TestSubmitTurnRollsBack(t *testing.T) {
	store := NewMemoryStore()
	svc, _ := newTestService(t, store)
	ctx := context.Background()

	game, _ := svc.CreateGame(ctx, "alice", "rollback", 10, 2)
	_, _ = svc.JoinGame(ctx, "bob", game.ID)
	flatten(t, store, game.ID)
	view, _ := svc.GetState(ctx, "alice", game.ID)
	unit := view.Units[0]

	bad := append(moveAction(t, unit.ID, unit.X+1, unit.Y), json.RawMessage(`{"type":"build","building_type":"castle","x":5,"y":5}`))
	_, err := svc.SubmitTurn(ctx, "alice", game.ID, bad)
	var ae *engine.ActionError
	if !errors.As(err, &ae) || ae.Index != 1 || !errors.Is(err, engine.ErrUnknownItem) {
		t.Fatalf("got %v", err)
	}

	after, _ := svc.GetState(ctx, "alice", game.ID)
	for _, u := range after.Units {
		if u.ID == unit.ID && (u.X != unit.X || u.HasMoved) {
			t.Fatal("partial batch committed")
		}
	}
	if _, err := svc.SubmitTurn(ctx, "alice", game.ID, nil); err != nil {
		t.Fatalf("turn should still be open: %v", err)
	}
}

func TestConcurrentSubmissionsSerialise(t *testing.T) {
	svc, _ := newTestService(t, NewMemoryStore())
	ctx := context.Background()
	game, _ := svc.CreateGame(ctx, "alice", "race", 10, 2)
	_, _ = svc.JoinGame(ctx, "bob", game.ID)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		repeats   int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.SubmitTurn(ctx, "alice", game.ID, nil)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, engine.ErrTurnAlreadyCompleted):
				repeats++
			}
		}()
	}
	wg.Wait()
	if successes != 1 || repeats != 15 {
		t.Fatalf("successes=%d repeats=%d", successes, repeats)
	}
}

func TestLeaveGame(t *testing.T) {
	svc, rec := newTestService(t, NewMemoryStore())
	ctx := context.Background()
	game, _ := svc.CreateGame(ctx, "alice", "leavers", 10, 2)
	_, _ = svc.JoinGame(ctx, "bob", game.ID)

	if err := svc.LeaveGame(ctx, "bob", game.ID); err != nil {
		t.Fatal(err)
	}
	if err := svc.LeaveGame(ctx, "bob", game.ID); err != nil {
		t.Fatalf("second leave: %v", err)
	}
	if err := svc.LeaveGame(ctx, "alice", game.ID); err != nil {
		t.Fatal(err)
	}

	games, _ := svc.ListGames(ctx, false)
	if len(games) != 1 || games[0].IsActive || games[0].PlayerCount != 0 {
		t.Fatalf("game should be closed: %+v", games)
	}
	active, _ := svc.ListGames(ctx, true)
	if len(active) != 0 {
		t.Fatal("closed game listed as active")
	}
	if _, err := svc.JoinGame(ctx, "carol", game.ID); !errors.Is(err, engine.ErrGameInactive) {
		t.Fatalf("join closed game: %v", err)
	}
	if rec.count(engine.EventGameStateChanged) == 0 {
		t.Fatal("no state events")
	}
}

func TestForfeitIdleGames(t *testing.T) {
	store := NewMemoryStore()
	svc, _ := newTestService(t, store)
	ctx := context.Background()
	clock := t0
	svc.Now = func() time.Time { return clock }
	store.Clock = func() time.Time { return clock }

	game, _ := svc.CreateGame(ctx, "alice", "slowpokes", 10, 2)
	_, _ = svc.JoinGame(ctx, "bob", game.ID)

	if n := svc.ForfeitIdleGames(ctx, 5*time.Minute); n != 0 {
		t.Fatalf("fresh game forfeited %d turns", n)
	}

	clock = clock.Add(10 * time.Minute)
	if n := svc.ForfeitIdleGames(ctx, 5*time.Minute); n != 1 {
		t.Fatalf("expected one forfeit, got %d", n)
	}
	view, _ := svc.GetState(ctx, "alice", game.ID)
	bob := ""
	for _, p := range view.Players {
		if p.UserID == "bob" {
			bob = p.ID
		}
	}
	if view.CurrentPlayerID != bob {
		t.Fatal("forfeit should hand the turn to bob")
	}
	if n := svc.ForfeitIdleGames(ctx, 5*time.Minute); n != 0 {
		t.Fatalf("game was just touched, got %d", n)
	}
}

func TestGameNotFound(t *testing.T) {
	svc, _ := newTestService(t, NewMemoryStore())
	ctx := context.Background()
	if _, err := svc.GetState(ctx, "alice", "nope"); !errors.Is(err, engine.ErrGameNotFound) {
		t.Fatalf("got %v", err)
	}
	if _, err := svc.SubmitTurn(ctx, "alice", "nope", nil); !errors.Is(err, engine.ErrGameNotFound) {
		t.Fatalf("got %v", err)
	}
	if _, err := svc.TurnHistory(ctx, "nope"); !errors.Is(err, engine.ErrGameNotFound) {
		t.Fatalf("got %v", err)
	}
}

func TestHub(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe("g1")
	other, cancelOther := hub.Subscribe("g2")
	defer cancelOther()

	hub.Publish(engine.Event{Type: engine.EventTurnCompleted, GameID: "g1"})
	select {
	case ev := <-ch:
		if ev.Type != engine.EventTurnCompleted {
			t.Fatalf("got %s", ev.Type)
		}
	default:
		t.Fatal("event not delivered")
	}
	select {
	case <-other:
		t.Fatal("event leaked to another game")
	default:
	}

	cancel()
	cancel()
	if _, open := <-ch; open {
		t.Fatal("channel should be closed")
	}
	if hub.SubscriberCount("g1") != 0 {
		t.Fatal("subscriber not removed")
	}
	hub.Publish(engine.Event{GameID: "g1"})
}
