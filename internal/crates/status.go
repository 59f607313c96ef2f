package crates

// Status is the per-crate load state. Transitions are monotonic within a
// session: NotLoaded -> Empty -> Full, with Full terminal. There is no path
// back to NotLoaded.
type Status uint8

const (
	// StatusNotLoaded means the engine has never heard the crate's name.
	StatusNotLoaded Status = iota
	// StatusEmpty means the engine knows the name exists but has not
	// ingested its source.
	StatusEmpty
	// StatusFull means source and manifest are ingested and the crate's own
	// transitive requirements resolved.
	StatusFull
)

func (s Status) String() string {
	switch s {
	case StatusNotLoaded:
		return "not-loaded"
	case StatusEmpty:
		return "empty"
	case StatusFull:
		return "full"
	}
	return "unknown"
}
