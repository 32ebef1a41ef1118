package domain

// PositionState is the strategy's memory between cycles.
// Invariant: Direction is none exactly when Status is flat.
type PositionState struct {
	Status    PositionStatus
	Direction Direction
}

// FlatState is the initial state of every strategy instance.
func FlatState() PositionState {
	return PositionState{Status: StatusFlat, Direction: DirectionNone}
}

// OpenState returns an open position in the given direction.
func OpenState(dir Direction) PositionState {
	return PositionState{Status: StatusOpen, Direction: dir}
}

// IsFlat reports whether no position is held.
func (p PositionState) IsFlat() bool {
	return p.Status == StatusFlat
}

// IsConsistent checks the status/direction invariant.
func (p PositionState) IsConsistent() bool {
	switch p.Status {
	case StatusFlat:
		return p.Direction == DirectionNone
	case StatusOpen:
		return p.Direction == DirectionLong || p.Direction == DirectionShort
	default:
		return false
	}
}

func (p PositionState) String() string {
	if p.Status == StatusFlat {
		return string(p.Status)
	}
	return string(p.Status) + "/" + string(p.Direction)
}
