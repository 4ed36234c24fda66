package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"strategy-game-server/engine"
	"strategy-game-server/logger"
	"strategy-game-server/middleware"
	"strategy-game-server/models"
	"strategy-game-server/services"
)

const testToken = "gateway-secret"

func init() {
	logger.Silence()
}

func newTestApp(t *testing.T, store services.Store) (*fiber.App, *services.GameService) {
	t.Helper()
	hub := services.NewHub()
	svc := services.NewGameService(store, hub, services.Options{
		Rules: engine.DefaultRules(),
		Rand:  rand.New(rand.NewPCG(3, 4)),
	})
	app := fiber.New()
	app.Use(middleware.GatewayAuthMiddleware(testToken))
	SetupGameRoutes(app, svc, hub)
	return app, svc
}

func do(t *testing.T, app *fiber.App, method, path, user string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = strings.NewReader(string(b))
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Authorization", "Bearer "+testToken)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	out := map[string]any{}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &out)
	}
	return resp.StatusCode, out
}

func TestGatewayAuth(t *testing.T) {
	app, _ := newTestApp(t, services.NewMemoryStore())

	req := httptest.NewRequest(http.MethodGet, "/rules", nil)
	resp, _ := app.Test(req)
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("missing token: %d", resp.StatusCode)
	}

	req = httptest.NewRequest(http.MethodGet, "/rules", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	resp, _ = app.Test(req)
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("bad token: %d", resp.StatusCode)
	}

	status, body := do(t, app, http.MethodGet, "/rules", "", nil)
	if status != fiber.StatusOK || body["units"] == nil {
		t.Fatalf("rules: %d %v", status, body)
	}
}

func TestGameRoutes(t *testing.T) {
	app, _ := newTestApp(t, services.NewMemoryStore())

	status, _ := do(t, app, http.MethodPost, "/games", "", map[string]any{"name": "x", "map_size": 10, "max_players": 2})
	if status != fiber.StatusUnauthorized {
		t.Fatalf("anonymous create: %d", status)
	}

	status, body := do(t, app, http.MethodPost, "/games", "alice", map[string]any{"name": "x", "map_size": 50, "max_players": 2})
	if status != fiber.StatusBadRequest || body["error"] != string(engine.CodeInvalidConfig) {
		t.Fatalf("bad config: %d %v", status, body)
	}

	status, body = do(t, app, http.MethodPost, "/games", "alice", map[string]any{"name": "Duel", "map_size": 10, "max_players": 2})
	if status != fiber.StatusCreated {
		t.Fatalf("create: %d %v", status, body)
	}
	gameID := body["id"].(string)

	status, _ = do(t, app, http.MethodPost, "/games/"+gameID+"/join", "bob", nil)
	if status != fiber.StatusCreated {
		t.Fatalf("join: %d", status)
	}
	status, body = do(t, app, http.MethodPost, "/games/"+gameID+"/join", "carol", nil)
	if status != fiber.StatusConflict || body["error"] != string(engine.CodeGameFull) {
		t.Fatalf("full: %d %v", status, body)
	}

	status, body = do(t, app, http.MethodPost, "/games/"+gameID+"/turns", "bob", map[string]any{"actions": []any{}})
	if status != fiber.StatusForbidden || body["error"] != string(engine.CodeNotYourTurn) {
		t.Fatalf("out of turn: %d %v", status, body)
	}

	status, body = do(t, app, http.MethodPost, "/games/"+gameID+"/turns", "alice", map[string]any{
		"actions": []any{
			map[string]any{"type": "build", "building_type": "mine", "x": -1, "y": 0},
		},
	})
	if status != fiber.StatusBadRequest || body["error"] != string(engine.CodeInvalidAction) || body["action_index"] != float64(0) {
		t.Fatalf("invalid action: %d %v", status, body)
	}

	status, body = do(t, app, http.MethodPost, "/games/"+gameID+"/turns", "alice", map[string]any{"actions": []any{}})
	if status != fiber.StatusOK || body["turn_number"] != float64(1) {
		t.Fatalf("submit: %d %v", status, body)
	}

	status, body = do(t, app, http.MethodGet, "/games/"+gameID, "alice", nil)
	if status != fiber.StatusOK || body["your_player_id"] == nil {
		t.Fatalf("state: %d %v", status, body)
	}
	status, body = do(t, app, http.MethodGet, "/games/"+gameID, "", nil)
	if status != fiber.StatusOK || len(body["units"].([]any)) != 0 {
		t.Fatalf("spectator state: %d %v", status, body)
	}

	status, body = do(t, app, http.MethodGet, "/games/"+gameID+"/turns", "", nil)
	if status != fiber.StatusOK || len(body["turns"].([]any)) != 1 {
		t.Fatalf("history: %d %v", status, body)
	}

	status, body = do(t, app, http.MethodGet, "/games?active=true", "", nil)
	if status != fiber.StatusOK || len(body["games"].([]any)) != 1 {
		t.Fatalf("list: %d %v", status, body)
	}

	status, _ = do(t, app, http.MethodPost, "/games/"+gameID+"/leave", "bob", nil)
	if status != fiber.StatusNoContent {
		t.Fatalf("leave: %d", status)
	}

	status, body = do(t, app, http.MethodGet, "/games/unknown", "alice", nil)
	if status != fiber.StatusNotFound {
		t.Fatalf("missing game: %d %v", status, body)
	}
}

func TestResourceErrorStatus(t *testing.T) {
	store := services.NewMemoryStore()
	app, svc := newTestApp(t, store)
	ctx := context.Background()

	game, err := svc.CreateGame(ctx, "alice", "poor", 10, 2)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = svc.JoinGame(ctx, "bob", game.ID)
	_, err = store.Update(ctx, game.ID, func(st *engine.State) (*engine.State, error) {
		next := st.Clone()
		for y := range next.Game.Terrain {
			for x := range next.Game.Terrain[y] {
				next.Game.Terrain[y][x] = models.TerrainPlains
			}
		}
		next.PlayerByUser("alice").Resources = 10
		return next, nil
	})
	if err != nil {
		t.Fatal(err)
	}

	status, body := do(t, app, http.MethodPost, "/games/"+game.ID+"/turns", "alice", map[string]any{
		"actions": []any{map[string]any{"type": "build", "building_type": "farm", "x": 5, "y": 5}},
	})
	if status != fiber.StatusUnprocessableEntity || body["error"] != string(engine.CodeInsufficientResources) {
		t.Fatalf("got %d %v", status, body)
	}
}

type brokenStore struct {
	services.Store
}

func (brokenStore) ListGames(context.Context, bool) ([]models.GameSummary, error) {
	return nil, errors.New("connection refused to 10.0.0.3:5432")
}

func TestInternalErrorsAreOpaque(t *testing.T) {
	app, _ := newTestApp(t, brokenStore{Store: services.NewMemoryStore()})
	status, body := do(t, app, http.MethodGet, "/games", "", nil)
	if status != fiber.StatusInternalServerError {
		t.Fatalf("status %d", status)
	}
	if body["error"] != "internal server error" || len(body) != 1 {
		t.Fatalf("internal detail leaked: %v", body)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  *engine.Error
		want int
	}{
		{engine.ErrInvalidConfig, fiber.StatusBadRequest},
		{engine.ErrNotYourTurn, fiber.StatusForbidden},
		{engine.ErrTurnAlreadyCompleted, fiber.StatusConflict},
		{engine.ErrInvalidAction, fiber.StatusBadRequest},
		{engine.ErrInsufficientResources, fiber.StatusUnprocessableEntity},
		{engine.ErrGameNotFound, fiber.StatusNotFound},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("%s: got %d, want %d", tt.err.Code, got, tt.want)
		}
	}
}

func TestStreamRequiresUser(t *testing.T) {
	app, svc := newTestApp(t, services.NewMemoryStore())
	game, _ := svc.CreateGame(context.Background(), "alice", "stream", 10, 2)

	status, _ := do(t, app, http.MethodGet, "/games/"+game.ID+"/events", "", nil)
	if status != fiber.StatusUnauthorized {
		t.Fatalf("anonymous stream: %d", status)
	}
	status, _ = do(t, app, http.MethodGet, "/games/missing/events?user_id=alice", "", nil)
	if status != fiber.StatusNotFound {
		t.Fatalf("stream for missing game: %d", status)
	}
}

func TestIdentitiesSurviveLaterRequests(t *testing.T) {
	store := services.NewMemoryStore()
	app, _ := newTestApp(t, store)

	status, body := do(t, app, http.MethodPost, "/games", "alice", map[string]any{"name": "Duel", "map_size": 10, "max_players": 2})
	if status != fiber.StatusCreated {
		t.Fatalf("create: %d %v", status, body)
	}
	gameID := body["id"].(string)
	status, joined := do(t, app, http.MethodPost, "/games/"+gameID+"/join", "bob", nil)
	if status != fiber.StatusCreated {
		t.Fatalf("join: %d", status)
	}

	// unrelated traffic between the join and the next read
	do(t, app, http.MethodGet, "/rules", "zzzzz", nil)
	do(t, app, http.MethodGet, "/games/zzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzz", "zzz", nil)

	st, err := store.Load(context.Background(), gameID)
	if err != nil {
		t.Fatal(err)
	}
	if st.Game.CreatedBy != "alice" {
		t.Fatalf("created_by = %q", st.Game.CreatedBy)
	}
	if st.PlayerByUser("alice") == nil || st.PlayerByUser("bob") == nil {
		t.Fatalf("seats rewritten: %+v", st.Players)
	}

	status, body = do(t, app, http.MethodGet, "/games/"+gameID, "bob", nil)
	if status != fiber.StatusOK || body["your_player_id"] != joined["id"] {
		t.Fatalf("bob not recognised: %d %v", status, body["your_player_id"])
	}
	status, body = do(t, app, http.MethodPost, "/games/"+gameID+"/join", "zzz", nil)
	if status != fiber.StatusConflict || body["error"] != string(engine.CodeGameFull) {
		t.Fatalf("stranger join: %d %v", status, body)
	}
}
