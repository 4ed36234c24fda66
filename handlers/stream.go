package handlers

import (
	"bufio"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"

	"strategy-game-server/logger"
	"strategy-game-server/middleware"
)

// StreamEvents pushes a game's committed events to the caller as SSE. The
// first message is the caller's current view of the game.
func (h *GameHandler) StreamEvents(c *fiber.Ctx) error {
	id := gameID(c)
	userID := middleware.UserID(c)

	view, err := h.Games.GetState(c.UserContext(), userID, id)
	if err != nil {
		return respondError(c, err)
	}
	snapshot, err := json.Marshal(view)
	if err != nil {
		return respondError(c, err)
	}

	// SSE headers
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no") // nginx

	events, cancel := h.Hub.Subscribe(id)
	keepAlive := h.KeepAlive
	if keepAlive <= 0 {
		keepAlive = 15 * time.Second
	}
	done := c.Context().Done()
	log := logger.Component("sse").WithField("game_id", id).WithField("user_id", userID)

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer cancel()
		ticker := time.NewTicker(keepAlive)
		defer ticker.Stop()

		fmt.Fprintf(w, "event: state\ndata: %s\n\n", snapshot)
		if err := w.Flush(); err != nil {
			return
		}

		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				payload, err := json.Marshal(ev)
				if err != nil {
					log.WithError(err).Error("Failed to encode event.")
					continue
				}
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, payload)
				if err := w.Flush(); err != nil {
					// Client disconnected
					return
				}
			case <-ticker.C:
				w.WriteString(":\n\n")
				if err := w.Flush(); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	})
	return nil
}
