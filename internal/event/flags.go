package event

import "fmt"

// Flags is the on-disk encoding of a record's lifecycle markers.
type Flags uint8

const (
	FlagStarted Flags = 1 << iota
	FlagSkipped
	FlagNotified
)

// Has reports whether every bit in mask is set.
func (f Flags) Has(mask Flags) bool {
	return f&mask == mask
}

// Decode unpacks a stored bitset. A value with both Started and Skipped set
// cannot have been produced by the engine and is rejected.
func (f Flags) Decode() (State, bool, error) {
	if f.Has(FlagStarted | FlagSkipped) {
		return Voting, false, fmt.Errorf("flags %#x: started and skipped are mutually exclusive", uint8(f))
	}
	if f&^(FlagStarted|FlagSkipped|FlagNotified) != 0 {
		return Voting, false, fmt.Errorf("flags %#x: unknown bits set", uint8(f))
	}

	state := Voting
	switch {
	case f.Has(FlagStarted):
		state = Started
	case f.Has(FlagSkipped):
		state = Skipped
	}
	return state, f.Has(FlagNotified), nil
}

// FlagsFromBools builds the bitset from the legacy boolean columns.
func FlagsFromBools(started, skipped, notified bool) Flags {
	var f Flags
	if started {
		f |= FlagStarted
	}
	if skipped && !started {
		f |= FlagSkipped
	}
	if notified {
		f |= FlagNotified
	}
	return f
}
