package engine

// EventType names a domain event pushed to the broadcast collaborator.
type EventType string

const (
	EventTurnCompleted    EventType = "turn_completed"
	EventEntityChanged    EventType = "entity_changed"
	EventGameStateChanged EventType = "game_state_changed"
)

// Event is emitted by engine transitions and dispatched by the caller only
// after the transition has been committed.
type Event struct {
	Type   EventType      `json:"type"`
	GameID string         `json:"game_id"`
	Data   map[string]any `json:"data"`
}

const (
	entityCreated = "created"
	entityUpdated = "updated"
	entityDeleted = "deleted"
)

func entityChanged(gameID, entityType, entityID, playerID, change string) Event {
	return Event{
		Type:   EventEntityChanged,
		GameID: gameID,
		Data: map[string]any{
			"entity_type": entityType,
			"entity_id":   entityID,
			"player_id":   playerID,
			"action":      change,
		},
	}
}

func gameStateChanged(st *State) Event {
	return Event{
		Type:   EventGameStateChanged,
		GameID: st.Game.ID,
		Data: map[string]any{
			"current_turn":        st.Game.CurrentTurn,
			"active_player_index": st.Game.ActivePlayerIndex,
			"is_active":           st.Game.IsActive,
		},
	}
}

func turnCompleted(gameID, playerID string, turnNumber int) Event {
	return Event{
		Type:   EventTurnCompleted,
		GameID: gameID,
		Data: map[string]any{
			"turn_number": turnNumber,
			"player_id":   playerID,
		},
	}
}
