package rag

import (
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"docchat/internal/domain"
	"docchat/internal/history"
	"docchat/internal/session"
)

// Remote tool names spoken over the persistent session.
const (
	createSessionTool = "snowflake_create_session"
	listTablesTool    = "snowflake_list_tables"
	dropTableTool     = "snowflake_drop_table"
	embeddingsTool    = "snowflake_create_embeddings"
	completionTool    = "snowflake_generate_completion"
	queryRAGTool      = "snowflake_query_rag"
)

// Config selects the models and prompts used for queries.
type Config struct {
	Model          string
	EmbeddingModel string
	SystemPrompt   string
	TopK           int
}

// Orchestrator answers questions against one or more ingested collections.
// Retrieval, prompt assembly and completion all happen remotely in a single
// combined tool call; the orchestrator supplies the system prompt, the
// target table(s) and k, and normalizes what comes back.
type Orchestrator struct {
	tools   domain.Dispatcher
	state   *session.State
	history *history.History
	cfg     Config
	log     *zap.Logger
}

// New assembles an orchestrator.
func New(tools domain.Dispatcher, state *session.State, hist *history.History, cfg Config, log *zap.Logger) *Orchestrator {
	if cfg.TopK == 0 {
		cfg.TopK = 8
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{tools: tools, state: state, history: hist, cfg: cfg, log: log}
}

// CreateSession asks the remote side to establish its warehouse session.
func (o *Orchestrator) CreateSession() error {
	env := o.tools.CallJSON(createSessionTool, nil)
	if !env.OK() {
		return errors.New(env.Message())
	}
	return nil
}

// ListTables fetches the remote collections with their display names.
func (o *Orchestrator) ListTables() ([]domain.Table, error) {
	env := o.tools.CallJSON(listTablesTool, nil)
	if !env.OK() {
		return nil, errors.New(env.Message())
	}
	raw := env.Maps("tables")
	tables := make([]domain.Table, 0, len(raw))
	for _, entry := range raw {
		name, _ := entry["name"].(string)
		display, _ := entry["display_name"].(string)
		if display == "" {
			display = session.DisplayName(name)
		}
		tables = append(tables, domain.Table{Name: name, DisplayName: display})
	}
	return tables, nil
}

// DropTable deletes a remote collection and invalidates the connected
// vector-store handle.
func (o *Orchestrator) DropTable(name string) error {
	env := o.tools.CallJSON(dropTableTool, map[string]any{"table_name": name})
	if !env.OK() {
		return errors.New(env.Message())
	}
	o.state.Disconnect()
	o.log.Info("table dropped", zap.String("table", name))
	return nil
}

// Embed returns remote embeddings for the given texts.
func (o *Orchestrator) Embed(texts []string) ([][]float64, error) {
	env := o.tools.CallJSON(embeddingsTool, map[string]any{
		"texts": texts,
		"model": o.cfg.EmbeddingModel,
	})
	if !env.OK() {
		return nil, errors.New(env.Message())
	}
	raw, _ := env["embeddings"].([]any)
	vectors := make([][]float64, 0, len(raw))
	for _, entry := range raw {
		values, _ := entry.([]any)
		vector := make([]float64, 0, len(values))
		for _, v := range values {
			if f, ok := v.(float64); ok {
				vector = append(vector, f)
			}
		}
		vectors = append(vectors, vector)
	}
	return vectors, nil
}

// Complete generates a raw completion without retrieval.
func (o *Orchestrator) Complete(prompt string) (string, error) {
	env := o.tools.CallJSON(completionTool, map[string]any{
		"prompt": prompt,
		"model":  o.cfg.Model,
	})
	if !env.OK() {
		return "", errors.New(env.Message())
	}
	return env.String("completion"), nil
}

// Ask answers one user question against the active selection. On success
// the question and the normalized answer are appended to the history, in
// that order; on any failure the history is left untouched.
func (o *Orchestrator) Ask(question string) (*domain.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, domain.ErrEmptyQuery
	}
	targets, err := o.state.Targets()
	if err != nil {
		return nil, err
	}
	if !o.state.Connected() {
		if err := o.reconnect(); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	env := o.tools.CallJSON(queryRAGTool, map[string]any{
		"query":           question,
		"system_prompt":   o.cfg.SystemPrompt,
		"table_name":      targets,
		"model":           o.cfg.Model,
		"embedding_model": o.cfg.EmbeddingModel,
		"k":               o.cfg.TopK,
	})
	if !env.OK() {
		return nil, errors.New(env.Message())
	}

	answer := NormalizeAnswer(env.String("answer"))
	items := make([]domain.ContextItem, 0)
	for _, entry := range env.Maps("context") {
		content, _ := entry["content"].(string)
		metadata, _ := entry["metadata"].(map[string]any)
		items = append(items, domain.ContextItem{Content: content, Metadata: metadata})
	}

	o.history.AddUserMessage(question)
	o.history.AddAIMessage(answer)
	o.log.Info("query answered",
		zap.Int("context_items", len(items)),
		zap.Duration("elapsed", time.Since(start)))
	return &domain.Answer{Text: answer, Context: items, Elapsed: time.Since(start)}, nil
}

// reconnect re-establishes the vector store handle after a selection
// change. Existing collections only need the marker restored; a pending
// new collection has no store to connect to until it is ingested.
func (o *Orchestrator) reconnect() error {
	if o.state.Mode() == session.CreateNew {
		return fmt.Errorf("ingest documents first to create the vector store")
	}
	o.state.MarkConnected()
	return nil
}

// NormalizeAnswer strips the literal assistant prefix the remote model
// sometimes emits and collapses embedded newlines to spaces.
func NormalizeAnswer(answer string) string {
	answer = strings.ReplaceAll(answer, "Assistant: ", "")
	answer = strings.ReplaceAll(answer, "\n", " ")
	return strings.TrimLeft(answer, " \t")
}

// ContextGroup is the supporting context of one originating collection.
type ContextGroup struct {
	Table string
	Items []ContextRef
}

// ContextRef is one supporting passage prepared for display. SourceURL is
// set only when the source metadata is a fetchable URL; Filename falls
// back to the bare name otherwise.
type ContextRef struct {
	Filename  string
	SourceURL string
	Content   string
}

// GroupContext groups supporting items by their originating table,
// preserving first-seen order.
func GroupContext(items []domain.ContextItem, fallbackTable string) []ContextGroup {
	var groups []ContextGroup
	index := make(map[string]int)
	for _, item := range items {
		table, _ := item.Metadata["db_table"].(string)
		if table == "" {
			table = fallbackTable
		}
		display := session.DisplayName(table)
		ref := ContextRef{Content: item.Content}
		if source, _ := item.Metadata["source"].(string); source != "" {
			ref.Filename = path.Base(source)
			if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
				ref.SourceURL = source
			}
		} else {
			ref.Filename = "unknown"
		}
		i, ok := index[display]
		if !ok {
			groups = append(groups, ContextGroup{Table: display})
			i = len(groups) - 1
			index[display] = i
		}
		groups[i].Items = append(groups[i].Items, ref)
	}
	return groups
}
