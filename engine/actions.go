package engine

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"strategy-game-server/models"
)

// ActionKind is the wire tag of an action.
type ActionKind string

const (
	ActionBuild     ActionKind = "build"
	ActionMoveUnit  ActionKind = "move_unit"
	ActionAttack    ActionKind = "attack"
	ActionTrainUnit ActionKind = "train_unit"
)

// Action is one of Build, MoveUnit, Attack or TrainUnit.
type Action interface {
	Kind() ActionKind
	isAction()
}

type Build struct {
	BuildingType string `json:"building_type"`
	X            int    `json:"x"`
	Y            int    `json:"y"`
}

type MoveUnit struct {
	UnitID string `json:"unit_id"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
}

type Attack struct {
	UnitID  string `json:"unit_id"`
	TargetX int    `json:"target_x"`
	TargetY int    `json:"target_y"`
}

type TrainUnit struct {
	BuildingID string `json:"building_id"`
	UnitType   string `json:"unit_type"`
}

func (Build) Kind() ActionKind     { return ActionBuild }
func (MoveUnit) Kind() ActionKind  { return ActionMoveUnit }
func (Attack) Kind() ActionKind    { return ActionAttack }
func (TrainUnit) Kind() ActionKind { return ActionTrainUnit }

func (Build) isAction()     {}
func (MoveUnit) isAction()  {}
func (Attack) isAction()    {}
func (TrainUnit) isAction() {}

// wireAction is the flat JSON shape clients send.
type wireAction struct {
	Type         string `json:"type"`
	BuildingType string `json:"building_type"`
	UnitType     string `json:"unit_type"`
	UnitID       string `json:"unit_id"`
	BuildingID   string `json:"building_id"`
	BarracksID   string `json:"barracks_id"`
	X            *int   `json:"x"`
	Y            *int   `json:"y"`
	TargetX      *int   `json:"target_x"`
	TargetY      *int   `json:"target_y"`
}

// DecodeAction turns one wire action into its typed variant.
func DecodeAction(raw json.RawMessage) (Action, error) {
	var w wireAction
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&w); err != nil {
		return nil, invalidAction(KindStateConflict, "", "malformed action: %v", err)
	}

	kind := ActionKind(w.Type)
	missing := func(field string) error {
		return invalidAction(KindStateConflict, kind, "missing field %q", field)
	}

	switch kind {
	case ActionBuild:
		if w.BuildingType == "" {
			return nil, missing("building_type")
		}
		if w.X == nil || w.Y == nil {
			return nil, missing("x/y")
		}
		return Build{BuildingType: w.BuildingType, X: *w.X, Y: *w.Y}, nil
	case ActionMoveUnit:
		if w.UnitID == "" {
			return nil, missing("unit_id")
		}
		if w.X == nil || w.Y == nil {
			return nil, missing("x/y")
		}
		return MoveUnit{UnitID: w.UnitID, X: *w.X, Y: *w.Y}, nil
	case ActionAttack:
		if w.UnitID == "" {
			return nil, missing("unit_id")
		}
		if w.TargetX == nil || w.TargetY == nil {
			return nil, missing("target_x/target_y")
		}
		return Attack{UnitID: w.UnitID, TargetX: *w.TargetX, TargetY: *w.TargetY}, nil
	case ActionTrainUnit:
		buildingID := w.BuildingID
		if buildingID == "" {
			buildingID = w.BarracksID
		}
		if buildingID == "" {
			return nil, missing("building_id")
		}
		if w.UnitType == "" {
			return nil, missing("unit_type")
		}
		return TrainUnit{BuildingID: buildingID, UnitType: w.UnitType}, nil
	}
	return nil, invalidAction(KindStateConflict, kind, "unknown action type %q", w.Type)
}

// DecodeActions decodes a whole batch up front so that an unknown or
// malformed action rejects the batch before any handler runs.
func DecodeActions(raw []json.RawMessage) ([]Action, error) {
	out := make([]Action, 0, len(raw))
	for i, r := range raw {
		a, err := DecodeAction(r)
		if err != nil {
			var kind ActionKind
			var e *Error
			if errors.As(err, &e) {
				kind = ActionKind(e.Action)
			}
			return nil, &ActionError{Index: i, Action: kind, Err: err}
		}
		out = append(out, a)
	}
	return out, nil
}

// Outcome is the result of one applied action.
type Outcome struct {
	Index    int           `json:"index"`
	Type     ActionKind    `json:"type"`
	EntityID string        `json:"entity_id,omitempty"`
	Position *Cell         `json:"position,omitempty"`
	Cost     int           `json:"cost,omitempty"`
	Attack   *AttackResult `json:"attack,omitempty"`
}

// Dispatcher routes typed actions to their handlers. Handlers mutate the
// State they are given; callers pass a working copy.
type Dispatcher struct {
	Rules Rules
	Rand  Rand
	NewID func() string
	Now   func() time.Time
}

func NewDispatcher(rules Rules, rng Rand) *Dispatcher {
	if rng == nil {
		rng = GlobalRand
	}
	return &Dispatcher{Rules: rules, Rand: rng, NewID: uuid.NewString, Now: time.Now}
}

// Apply executes one action for playerID.
func (d *Dispatcher) Apply(st *State, playerID string, action Action) (Outcome, []Event, error) {
	switch a := action.(type) {
	case Build:
		return d.build(st, playerID, a)
	case MoveUnit:
		return d.moveUnit(st, playerID, a)
	case Attack:
		return d.attack(st, playerID, a)
	case TrainUnit:
		return d.trainUnit(st, playerID, a)
	}
	return Outcome{}, nil, invalidAction(KindStateConflict, "", "unsupported action %T", action)
}

func (d *Dispatcher) build(st *State, playerID string, a Build) (Outcome, []Event, error) {
	stats, ok := models.BuildingCatalog[a.BuildingType]
	if !ok || !stats.Buildable {
		return Outcome{}, nil, withDetail(ErrUnknownItem, "building type %q cannot be built", a.BuildingType)
	}
	if err := CanBuild(st, a.X, a.Y); err != nil {
		return Outcome{}, nil, err
	}
	player := st.PlayerByID(playerID)
	cost := Cost(a.BuildingType)
	if err := Charge(player, cost); err != nil {
		return Outcome{}, nil, err
	}

	now := d.Now()
	b := models.Building{
		ID:                 d.NewID(),
		GameID:             st.Game.ID,
		PlayerID:           playerID,
		BuildingType:       a.BuildingType,
		X:                  a.X,
		Y:                  a.Y,
		Health:             stats.Health,
		ResourceProduction: stats.ResourceProduction,
		Timestamps:         models.Timestamps{CreatedAt: now, UpdatedAt: now},
	}
	st.Buildings = append(st.Buildings, b)

	return Outcome{Type: ActionBuild, EntityID: b.ID, Position: &Cell{X: b.X, Y: b.Y}, Cost: cost},
		[]Event{entityChanged(st.Game.ID, TargetBuilding, b.ID, playerID, entityCreated)}, nil
}

// ownUnit looks up a unit and checks it belongs to playerID.
func ownUnit(st *State, playerID, unitID string, kind ActionKind) (int, error) {
	i := st.unitIndex(unitID)
	if i < 0 {
		return -1, notFound("unit %s not found", unitID)
	}
	if st.Units[i].PlayerID != playerID {
		return -1, invalidAction(KindAuthorization, kind, "unit %s is not yours", unitID)
	}
	return i, nil
}

func (d *Dispatcher) moveUnit(st *State, playerID string, a MoveUnit) (Outcome, []Event, error) {
	i, err := ownUnit(st, playerID, a.UnitID, ActionMoveUnit)
	if err != nil {
		return Outcome{}, nil, err
	}
	unit := &st.Units[i]
	if unit.HasMoved {
		return Outcome{}, nil, invalidAction(KindStateConflict, ActionMoveUnit, "unit %s has already moved this round", unit.ID)
	}
	if err := CanMove(st, unit, a.X, a.Y); err != nil {
		return Outcome{}, nil, err
	}

	unit.X, unit.Y = a.X, a.Y
	unit.HasMoved = true
	unit.UpdatedAt = d.Now()

	return Outcome{Type: ActionMoveUnit, EntityID: unit.ID, Position: &Cell{X: a.X, Y: a.Y}},
		[]Event{entityChanged(st.Game.ID, TargetUnit, unit.ID, playerID, entityUpdated)}, nil
}

func (d *Dispatcher) attack(st *State, playerID string, a Attack) (Outcome, []Event, error) {
	i, err := ownUnit(st, playerID, a.UnitID, ActionAttack)
	if err != nil {
		return Outcome{}, nil, err
	}
	unit := &st.Units[i]
	if unit.HasAttacked {
		return Outcome{}, nil, invalidAction(KindStateConflict, ActionAttack, "unit %s has already attacked this round", unit.ID)
	}
	target, ok := TargetAt(st, a.TargetX, a.TargetY)
	if !ok {
		return Outcome{}, nil, notFound("no target at (%d,%d)", a.TargetX, a.TargetY)
	}
	if target.PlayerID == playerID {
		return Outcome{}, nil, invalidAction(KindAuthorization, ActionAttack, "cannot attack your own %s", target.Kind)
	}
	if err := CanAttack(unit, target); err != nil {
		return Outcome{}, nil, err
	}

	unitID := unit.ID
	res := ResolveAttack(st, unitID, target, d.Rules.MaxDamageBonus, d.Rand)

	change := entityUpdated
	if res.Destroyed {
		change = entityDeleted
	}
	events := []Event{
		entityChanged(st.Game.ID, TargetUnit, unitID, playerID, entityUpdated),
		entityChanged(st.Game.ID, target.Kind, target.ID, target.PlayerID, change),
	}
	return Outcome{Type: ActionAttack, EntityID: unitID, Position: &target.Pos, Attack: &res}, events, nil
}

func (d *Dispatcher) trainUnit(st *State, playerID string, a TrainUnit) (Outcome, []Event, error) {
	stats, ok := models.UnitCatalog[a.UnitType]
	if !ok {
		return Outcome{}, nil, withDetail(ErrUnknownItem, "unknown unit type %q", a.UnitType)
	}
	bi := st.buildingIndex(a.BuildingID)
	if bi < 0 {
		return Outcome{}, nil, notFound("building %s not found", a.BuildingID)
	}
	barracks := &st.Buildings[bi]
	if barracks.PlayerID != playerID {
		return Outcome{}, nil, invalidAction(KindAuthorization, ActionTrainUnit, "building %s is not yours", barracks.ID)
	}
	if barracks.BuildingType != models.BuildingBarracks {
		return Outcome{}, nil, invalidAction(KindStateConflict, ActionTrainUnit, "units can only be trained at a barracks, not a %s", barracks.BuildingType)
	}
	if barracks.HasTrained {
		return Outcome{}, nil, invalidAction(KindStateConflict, ActionTrainUnit, "barracks %s has already trained this round", barracks.ID)
	}
	pos, ok := spawnCell(st, Cell{X: barracks.X, Y: barracks.Y})
	if !ok {
		return Outcome{}, nil, invalidAction(KindStateConflict, ActionTrainUnit, "no free cell next to barracks %s", barracks.ID)
	}
	cost := Cost(a.UnitType)
	if err := Charge(st.PlayerByID(playerID), cost); err != nil {
		return Outcome{}, nil, err
	}

	now := d.Now()
	barracks.HasTrained = true
	barracks.UpdatedAt = now
	u := newUnit(d.NewID(), st.Game.ID, playerID, stats, pos, now)
	st.Units = append(st.Units, u)

	return Outcome{Type: ActionTrainUnit, EntityID: u.ID, Position: &pos, Cost: cost},
		[]Event{entityChanged(st.Game.ID, TargetUnit, u.ID, playerID, entityCreated)}, nil
}

func newUnit(id, gameID, playerID string, stats models.UnitStats, pos Cell, now time.Time) models.Unit {
	return models.Unit{
		ID:            id,
		GameID:        gameID,
		PlayerID:      playerID,
		UnitType:      stats.Name,
		X:             pos.X,
		Y:             pos.Y,
		Health:        stats.Health,
		Attack:        stats.Attack,
		Defense:       stats.Defense,
		MovementRange: stats.MovementRange,
		AttackRange:   stats.AttackRange,
		Timestamps:    models.Timestamps{CreatedAt: now, UpdatedAt: now},
	}
}
