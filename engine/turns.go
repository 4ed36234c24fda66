package engine

import (
	"encoding/json"
	"errors"

	"github.com/sirupsen/logrus"

	"strategy-game-server/logger"
	"strategy-game-server/models"
)

// TurnResult is what a successful submission reports back.
type TurnResult struct {
	TurnNumber    int            `json:"turn_number"`
	PlayerID      string         `json:"player_id"`
	Outcomes      []Outcome      `json:"outcomes"`
	RoundAdvanced bool           `json:"round_advanced"`
	CurrentTurn   int            `json:"current_turn"`
	NextPlayerID  string         `json:"next_player_id,omitempty"`
	Income        map[string]int `json:"income,omitempty"`
}

// Coordinator runs one player's batch against a game state and advances the
// round when the last active player finishes.
type Coordinator struct {
	Rules      Rules
	Dispatcher *Dispatcher
}

func NewCoordinator(rules Rules, rng Rand) *Coordinator {
	return &Coordinator{Rules: rules, Dispatcher: NewDispatcher(rules, rng)}
}

// Submit validates and applies the batch for userID against st.
//
// st is never modified. On success the returned State holds every mutation of
// the batch, the completed Turn record and, when this submission closed the
// round, the round-advance effects. On failure nothing is returned and the
// caller discards the attempt, so partial batches cannot leak.
func (c *Coordinator) Submit(st *State, userID string, raw []json.RawMessage) (*State, *TurnResult, []Event, error) {
	log := logger.Log.WithFields(logrus.Fields{
		"component": "turn_coordinator",
		"game_id":   st.Game.ID,
		"user_id":   userID,
		"turn":      st.Game.CurrentTurn,
	})

	if !st.Game.IsActive {
		return nil, nil, nil, ErrGameInactive
	}
	player := st.PlayerByUser(userID)
	if player == nil || !player.IsActive {
		return nil, nil, nil, ErrNotParticipant
	}
	if st.hasCompleted(player.ID) {
		return nil, nil, nil, withDetail(ErrTurnAlreadyCompleted, "turn %d already submitted", st.Game.CurrentTurn)
	}
	if cur := st.CurrentPlayer(); cur == nil || cur.ID != player.ID {
		return nil, nil, nil, ErrNotYourTurn
	}

	actions, err := DecodeActions(raw)
	if err != nil {
		log.WithError(err).Info("Batch rejected during decoding.")
		return nil, nil, nil, err
	}

	next := st.Clone()
	var events []Event
	outcomes := make([]Outcome, 0, len(actions))
	for i, a := range actions {
		out, evs, err := c.Dispatcher.Apply(next, player.ID, a)
		if err != nil {
			log.WithError(err).WithField("action_index", i).Info("Batch rejected, rolling back.")
			return nil, nil, nil, &ActionError{Index: i, Action: a.Kind(), Err: err}
		}
		out.Index = i
		outcomes = append(outcomes, out)
		events = append(events, evs...)
	}

	if raw == nil {
		raw = []json.RawMessage{}
	}
	payload, err := json.Marshal(raw)
	if err != nil {
		return nil, nil, nil, err
	}
	now := c.Dispatcher.Now()
	turn := models.Turn{
		ID:          c.Dispatcher.NewID(),
		GameID:      next.Game.ID,
		PlayerID:    player.ID,
		TurnNumber:  next.Game.CurrentTurn,
		Actions:     payload,
		Completed:   true,
		CompletedAt: &now,
		CreatedAt:   now,
	}
	next.Turns = append(next.Turns, turn)
	events = append(events, turnCompleted(next.Game.ID, player.ID, turn.TurnNumber))

	result := &TurnResult{
		TurnNumber: turn.TurnNumber,
		PlayerID:   player.ID,
		Outcomes:   outcomes,
	}

	if next.RoundComplete() {
		var income map[string]int
		next, income = AdvanceRound(c.Rules, next, turn)
		result.RoundAdvanced = true
		result.Income = income
		log.WithField("next_turn", next.Game.CurrentTurn).Info("Round advanced.")
	} else {
		next.pointAfter(next.Game.ActivePlayerIndex)
	}
	events = append(events, gameStateChanged(next))

	result.CurrentTurn = next.Game.CurrentTurn
	if cur := next.CurrentPlayer(); cur != nil {
		result.NextPlayerID = cur.ID
	}
	return next, result, events, nil
}

// AdvanceRound closes the round that completed ends: it resets unit and
// barracks per-round flags, credits income to every active player, increments
// the turn counter and moves the active-player index one past the player who
// completed the round. The input state is not modified.
func AdvanceRound(rules Rules, st *State, completed models.Turn) (*State, map[string]int) {
	next := st.Clone()
	from := -1
	for i, p := range next.ActivePlayers() {
		if p.ID == completed.PlayerID {
			from = i
		}
	}
	if from < 0 {
		from = next.Game.ActivePlayerIndex - 1
	}
	income := advanceRound(rules, next, from)
	return next, income
}

func advanceRound(rules Rules, st *State, from int) map[string]int {
	for i := range st.Units {
		st.Units[i].HasMoved = false
		st.Units[i].HasAttacked = false
	}
	for i := range st.Buildings {
		st.Buildings[i].HasTrained = false
	}
	income := CreditTurnIncome(rules, st)
	st.Game.CurrentTurn++

	n := len(st.ActivePlayers())
	if n == 0 {
		st.Game.ActivePlayerIndex = 0
	} else {
		st.Game.ActivePlayerIndex = ((from+1)%n + n) % n
	}
	return income
}

// IsPlayerError reports whether err is a categorised, player-caused failure
// as opposed to an internal fault.
func IsPlayerError(err error) bool {
	var e *Error
	return errors.As(err, &e)
}

// ForfeitUser returns the user expected to submit next, for timeout policies.
func ForfeitUser(st *State) (string, bool) {
	if !st.Game.IsActive {
		return "", false
	}
	cur := st.CurrentPlayer()
	if cur == nil {
		return "", false
	}
	return cur.UserID, true
}
