package session

import (
	"strings"

	"docchat/internal/domain"
)

// Mode describes how the user is selecting collections.
type Mode int

const (
	// Single targets one existing collection.
	Single Mode = iota
	// Multi targets two or more existing collections at once.
	Multi
	// CreateNew targets a collection that does not exist yet.
	CreateNew
)

const (
	// TablePrefix is the namespace token prepended to user-entered names.
	TablePrefix = "LANGCHAIN_"
	// DefaultTableName is used when the new-collection input is empty.
	DefaultTableName = TablePrefix + "TEST"
)

// State is the single source of truth for which collection(s) are active,
// the model choice, and whether a vector store handle is connected. Any
// selection mutation clears the connected flag, forcing the ingest or the
// lazy reconnect path to re-establish it before the next query.
//
// State is per user session and not safe for concurrent use; the host
// application drives it from a single goroutine.
type State struct {
	mode           Mode
	names          []string
	displayNames   []string
	newTableName   string
	embeddingModel string
	vectorLength   int
	connected      bool
}

// New creates a state in CreateNew mode with the default pending name.
func New(embeddingModel string, vectorLength int) *State {
	return &State{
		mode:           CreateNew,
		newTableName:   DefaultTableName,
		embeddingModel: embeddingModel,
		vectorLength:   vectorLength,
	}
}

// Select records a new collection selection and invalidates the connected
// vector-store handle.
func (s *State) Select(mode Mode, names, displayNames []string) {
	s.mode = mode
	s.names = append([]string(nil), names...)
	s.displayNames = append([]string(nil), displayNames...)
	s.connected = false
}

// SetNewTableName normalizes and stores the pending new-collection name,
// invalidating the connected handle.
func (s *State) SetNewTableName(input string) {
	s.mode = CreateNew
	s.newTableName = NormalizeTableName(input)
	s.connected = false
}

// SetEmbeddingModel changes the embedding model and invalidates the handle.
func (s *State) SetEmbeddingModel(model string) {
	s.embeddingModel = model
	s.connected = false
}

func (s *State) Mode() Mode              { return s.mode }
func (s *State) EmbeddingModel() string  { return s.embeddingModel }
func (s *State) VectorLength() int       { return s.vectorLength }
func (s *State) DisplayNames() []string  { return append([]string(nil), s.displayNames...) }
func (s *State) NewTableName() string    { return s.newTableName }

// Connected reports whether a vector store handle is established.
func (s *State) Connected() bool { return s.connected }

// MarkConnected records that the vector store is reachable for the
// current selection.
func (s *State) MarkConnected() { s.connected = true }

// Disconnect clears the vector store handle, e.g. after a table drop.
func (s *State) Disconnect() { s.connected = false }

// Ready reports whether the selection can serve a query. Multi mode
// requires at least two distinct tables.
func (s *State) Ready() bool {
	switch s.mode {
	case Multi:
		return len(distinct(s.names)) >= 2
	case Single:
		return len(s.names) == 1
	default:
		return s.newTableName != ""
	}
}

// Targets returns the table name parameter for the remote query tool:
// a plain string in Single and CreateNew modes, a list in Multi mode.
func (s *State) Targets() (any, error) {
	switch s.mode {
	case Multi:
		if len(distinct(s.names)) < 2 {
			return nil, domain.ErrSelectionIncomplete
		}
		return append([]string(nil), s.names...), nil
	case Single:
		if len(s.names) != 1 {
			return nil, domain.ErrSelectionIncomplete
		}
		return s.names[0], nil
	default:
		return s.newTableName, nil
	}
}

// TargetTable is the single table the ingestion pipeline writes to.
func (s *State) TargetTable() string {
	if s.mode == CreateNew {
		return s.newTableName
	}
	if len(s.names) > 0 {
		return s.names[0]
	}
	return DefaultTableName
}

// NormalizeTableName uppercases a user-entered name and prefixes it with
// the namespace token unless already present. Empty input falls back to
// the default name.
func NormalizeTableName(input string) string {
	name := strings.ToUpper(strings.TrimSpace(input))
	if name == "" {
		return DefaultTableName
	}
	if !strings.HasPrefix(name, TablePrefix) {
		name = TablePrefix + name
	}
	return name
}

// DisplayName strips the namespace prefix for presentation.
func DisplayName(table string) string {
	return strings.ToUpper(strings.TrimPrefix(table, TablePrefix))
}

func distinct(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	var out []string
	for _, n := range names {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
