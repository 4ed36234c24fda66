// handlers/game.go
package handlers

import (
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"strategy-game-server/middleware"
	"strategy-game-server/services"
)

// GameHandler adapts GameService to HTTP.
type GameHandler struct {
	Games     *services.GameService
	Hub       *services.Hub
	KeepAlive time.Duration
}

func SetupGameRoutes(app *fiber.App, games *services.GameService, hub *services.Hub) *GameHandler {
	h := &GameHandler{Games: games, Hub: hub, KeepAlive: 15 * time.Second}

	// 🔓 Public routes: no user context, still behind Gateway auth
	app.Get("/rules", h.GetRules)
	app.Get("/games", h.ListGames)
	app.Get("/games/:id", h.GetState)
	app.Get("/games/:id/turns", h.TurnHistory)

	// 📡 Event stream: user from header or query
	app.Get("/games/:id/events", middleware.SSEUserMiddleware(), h.StreamEvents)

	// 🔐 Secured routes: require user context
	secured := app.Group("/", middleware.UserContextMiddleware())
	secured.Post("/games", h.CreateGame)
	secured.Post("/games/:id/join", h.JoinGame)
	secured.Post("/games/:id/leave", h.LeaveGame)
	secured.Post("/games/:id/turns", h.SubmitTurn)

	return h
}

// gameID copies the route parameter out of the request buffer, which fasthttp
// reuses once the handler returns.
func gameID(c *fiber.Ctx) string {
	return utils.CopyString(c.Params("id"))
}

type createGameRequest struct {
	Name       string `json:"name"`
	MapSize    int    `json:"map_size"`
	MaxPlayers int    `json:"max_players"`
}

func (h *GameHandler) CreateGame(c *fiber.Ctx) error {
	var req createGameRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	game, err := h.Games.CreateGame(c.UserContext(), middleware.UserID(c), req.Name, req.MapSize, req.MaxPlayers)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(game)
}

func (h *GameHandler) ListGames(c *fiber.Ctx) error {
	activeOnly := c.QueryBool("active", false)
	games, err := h.Games.ListGames(c.UserContext(), activeOnly)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"games": games})
}

func (h *GameHandler) GetRules(c *fiber.Ctx) error {
	return c.JSON(h.Games.RulesView())
}

func (h *GameHandler) GetState(c *fiber.Ctx) error {
	view, err := h.Games.GetState(c.UserContext(), middleware.UserID(c), gameID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(view)
}

func (h *GameHandler) JoinGame(c *fiber.Ctx) error {
	player, err := h.Games.JoinGame(c.UserContext(), middleware.UserID(c), gameID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(player)
}

func (h *GameHandler) LeaveGame(c *fiber.Ctx) error {
	if err := h.Games.LeaveGame(c.UserContext(), middleware.UserID(c), gameID(c)); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type submitTurnRequest struct {
	Actions []json.RawMessage `json:"actions"`
}

func (h *GameHandler) SubmitTurn(c *fiber.Ctx) error {
	var req submitTurnRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	result, err := h.Games.SubmitTurn(c.UserContext(), middleware.UserID(c), gameID(c), req.Actions)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(result)
}

func (h *GameHandler) TurnHistory(c *fiber.Ctx) error {
	turns, err := h.Games.TurnHistory(c.UserContext(), gameID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"turns": turns})
}
