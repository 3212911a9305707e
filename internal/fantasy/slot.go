package fantasy

import "strings"

// Position is a basketball position a player is eligible for.
type Position string

const (
	PositionPG Position = "PG"
	PositionSG Position = "SG"
	PositionSF Position = "SF"
	PositionPF Position = "PF"
	PositionC  Position = "C"
)

// Slot is a fantasy roster position label.
type Slot string

const (
	SlotPG     Slot = "PG"
	SlotSG     Slot = "SG"
	SlotG      Slot = "G"
	SlotSF     Slot = "SF"
	SlotPF     Slot = "PF"
	SlotF      Slot = "F"
	SlotC      Slot = "C"
	SlotUtil   Slot = "Util"
	SlotBench  Slot = "BN"
	SlotIL     Slot = "IL"
	SlotILPlus Slot = "IL+"
	SlotDNP    Slot = "DNP"
)

// Active reports whether stats earned in this slot count for the team.
func (s Slot) Active() bool {
	switch s {
	case "", SlotBench, SlotIL, SlotILPlus, SlotDNP:
		return false
	}
	return true
}

// Injured reports whether the slot is one of the injured-list variants.
func (s Slot) Injured() bool {
	return s == SlotIL || s == SlotILPlus
}

// Priority orders active slots from most to least restrictive: exact
// position slots first, then the two-position flex slots, then Util.
func (s Slot) Priority() int {
	switch s {
	case SlotG, SlotF:
		return 2
	case SlotUtil:
		return 3
	}
	return 1
}

// Accepts reports whether a player with the given eligible positions can
// fill the slot. Bench and Util take anyone.
func (s Slot) Accepts(eligible []Position) bool {
	if s == SlotUtil || s == SlotBench {
		return true
	}
	for _, p := range eligible {
		pos := Position(strings.TrimSpace(string(p)))
		if string(pos) == string(s) {
			return true
		}
		switch s {
		case SlotG:
			if pos == PositionPG || pos == PositionSG {
				return true
			}
		case SlotF:
			if pos == PositionSF || pos == PositionPF {
				return true
			}
		}
	}
	return false
}
