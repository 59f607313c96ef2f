package session

// Wire method names. The session proxy forwards each typed call verbatim
// under one of these; the engine-side dispatcher switches on them.
const (
	methodLoadFiles          = "workspace/loadFiles"
	methodLoadCrate          = "crate/load"
	methodRegisterEmptyCrate = "crate/registerEmpty"
	methodDiagnostics        = "analysis/diagnostics"
	methodHover              = "analysis/hover"
	methodCompletion         = "analysis/completion"
	methodDefinition         = "analysis/definition"
	methodRename             = "analysis/rename"
)

// File is one workspace source file pushed to the engine.
type File struct {
	Path    string
	Content string
}

// Position is a zero-based line/character location in a file.
type Position struct {
	Line      int
	Character int
}

// Range is a half-open [Start, End) span in a file.
type Range struct {
	Start Position
	End   Position
}

// Severity defines the importance of a diagnostic.
type Severity uint8

const (
	// SeverityInfo is for informational diagnostics.
	SeverityInfo Severity = iota
	// SeverityWarning is for warning diagnostics.
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARNING"
	case SeverityError:
		return "ERROR"
	}
	return "UNKNOWN"
}

// Diagnostic is one engine finding for an analyzed file. The core republishes
// it unmodified; coordinates are already file-relative.
type Diagnostic struct {
	Path     string
	Range    Range
	Severity Severity
	Code     string
	Message  string
}

// Hover is the result of a hover query.
type Hover struct {
	Contents string
	Range    Range
}

// CompletionItem is one completion proposal.
type CompletionItem struct {
	Label  string
	Detail string
}

// Location points at a range inside a workspace file.
type Location struct {
	Path  string
	Range Range
}

// TextEdit is one rename edit.
type TextEdit struct {
	Path    string
	Range   Range
	NewText string
}
