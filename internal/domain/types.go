package domain

import "time"

// Role identifies the author of a conversation turn, using the
// portable transcript wire values.
type Role string

const (
	RoleHuman Role = "human"
	RoleAI    Role = "ai"
)

// Turn is one message (human or AI) in the conversation history.
type Turn struct {
	Role    Role   `json:"type"`
	Content string `json:"content"`
}

// Document is a parsed unit of source material: a text file, a CSV,
// a web page, or a single PDF page. Metadata carries at least "source"
// and "page" once the ingestion pipeline has seen it.
type Document struct {
	Text     string
	Metadata map[string]any
}

// Chunk is a bounded-length text window with overlap, the unit of
// embedding and retrieval. Metadata is inherited from the originating
// document.
type Chunk struct {
	Text     string
	Metadata map[string]any
}

// ContextItem is one supporting passage returned alongside an answer.
type ContextItem struct {
	Content  string
	Metadata map[string]any
}

// Answer is a completed RAG reply with its supporting context.
type Answer struct {
	Text    string
	Context []ContextItem
	Elapsed time.Duration
}

// Table describes a remote collection as reported by the tool server.
// DisplayName is the raw name with the namespace prefix stripped.
type Table struct {
	Name        string
	DisplayName string
}
