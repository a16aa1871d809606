package rag

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchat/internal/domain"
	"docchat/internal/history"
	"docchat/internal/session"
)

// fakeDispatcher replays canned envelopes per tool name and records the
// parameters of the last call.
type fakeDispatcher struct {
	replies map[string]domain.Envelope
	calls   []string
	params  map[string]any
}

func newFakeDispatcher() *fakeDispatcher {
	return &fakeDispatcher{replies: make(map[string]domain.Envelope)}
}

func (f *fakeDispatcher) reply(tool, payload string) {
	var env domain.Envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		panic(err)
	}
	f.replies[tool] = env
}

func (f *fakeDispatcher) CallJSON(name string, params map[string]any) domain.Envelope {
	f.calls = append(f.calls, name)
	f.params = params
	if env, ok := f.replies[name]; ok {
		return env
	}
	return domain.ErrorEnvelope("unexpected tool " + name)
}

func (f *fakeDispatcher) CallText(string, map[string]any) (string, error) {
	return "", nil
}

func connectedState() *session.State {
	s := session.New("multilingual-e5-large", 1024)
	s.Select(session.Single, []string{"LANGCHAIN_DOCS"}, []string{"DOCS"})
	s.MarkConnected()
	return s
}

func TestAskSuccessNormalizesAndRecordsHistory(t *testing.T) {
	tools := newFakeDispatcher()
	tools.reply("snowflake_query_rag", `{
		"status": "success",
		"answer": "Assistant: Paris\n is the capital",
		"context": [
			{"content": "Paris is the capital of France.",
			 "metadata": {"source": "geography.txt", "db_table": "LANGCHAIN_DOCS"}}
		]
	}`)
	state := connectedState()
	hist := history.New()
	o := New(tools, state, hist, Config{Model: "mistral-large"}, nil)

	answer, err := o.Ask("What is the capital of France?")
	require.NoError(t, err)
	assert.Equal(t, "Paris  is the capital", answer.Text)
	require.Len(t, answer.Context, 1)

	turns := hist.Turns()
	require.Len(t, turns, 2)
	assert.Equal(t, domain.RoleHuman, turns[0].Role)
	assert.Equal(t, "What is the capital of France?", turns[0].Content)
	assert.Equal(t, domain.RoleAI, turns[1].Role)
	assert.Equal(t, "Paris  is the capital", turns[1].Content)

	assert.Equal(t, "LANGCHAIN_DOCS", tools.params["table_name"])
	assert.Equal(t, 8, tools.params["k"])
}

func TestAskErrorLeavesHistoryUntouched(t *testing.T) {
	tools := newFakeDispatcher()
	tools.reply("snowflake_query_rag", `{"status":"error","message":"timeout"}`)
	hist := history.New()
	o := New(tools, connectedState(), hist, Config{}, nil)

	_, err := o.Ask("anything")
	assert.EqualError(t, err, "timeout")
	assert.True(t, hist.Empty())
}

func TestAskEmptyQuestion(t *testing.T) {
	tools := newFakeDispatcher()
	o := New(tools, connectedState(), history.New(), Config{}, nil)

	_, err := o.Ask("   ")
	assert.ErrorIs(t, err, domain.ErrEmptyQuery)
	assert.Empty(t, tools.calls)
}

func TestAskIncompleteMultiSelection(t *testing.T) {
	tools := newFakeDispatcher()
	state := session.New("multilingual-e5-large", 1024)
	state.Select(session.Multi, []string{"LANGCHAIN_A"}, []string{"A"})
	hist := history.New()
	o := New(tools, state, hist, Config{}, nil)

	_, err := o.Ask("question")
	assert.ErrorIs(t, err, domain.ErrSelectionIncomplete)
	assert.Empty(t, tools.calls)
	assert.True(t, hist.Empty())
}

func TestAskMultiSelectionSendsTableList(t *testing.T) {
	tools := newFakeDispatcher()
	tools.reply("snowflake_query_rag", `{"status":"success","answer":"merged","context":[]}`)
	state := session.New("multilingual-e5-large", 1024)
	state.Select(session.Multi, []string{"LANGCHAIN_A", "LANGCHAIN_B"}, []string{"A", "B"})
	o := New(tools, state, history.New(), Config{}, nil)

	_, err := o.Ask("question")
	require.NoError(t, err)
	assert.Equal(t, []string{"LANGCHAIN_A", "LANGCHAIN_B"}, tools.params["table_name"])
	// the lazy reconnect marked the existing tables reachable
	assert.True(t, state.Connected())
}

func TestAskPendingCollectionRequiresIngest(t *testing.T) {
	tools := newFakeDispatcher()
	state := session.New("multilingual-e5-large", 1024)
	o := New(tools, state, history.New(), Config{}, nil)

	_, err := o.Ask("question")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ingest documents first")
	assert.Empty(t, tools.calls)
}

func TestListTables(t *testing.T) {
	tools := newFakeDispatcher()
	tools.reply("snowflake_list_tables", `{
		"status": "success",
		"tables": [
			{"name": "LANGCHAIN_DOCS", "display_name": "DOCS"},
			{"name": "LANGCHAIN_REPORTS"}
		]
	}`)
	o := New(tools, connectedState(), history.New(), Config{}, nil)

	tables, err := o.ListTables()
	require.NoError(t, err)
	require.Len(t, tables, 2)
	assert.Equal(t, domain.Table{Name: "LANGCHAIN_DOCS", DisplayName: "DOCS"}, tables[0])
	assert.Equal(t, "REPORTS", tables[1].DisplayName)
}

func TestDropTableDisconnects(t *testing.T) {
	tools := newFakeDispatcher()
	tools.reply("snowflake_drop_table", `{"status":"success"}`)
	state := connectedState()
	o := New(tools, state, history.New(), Config{}, nil)

	require.NoError(t, o.DropTable("LANGCHAIN_DOCS"))
	assert.False(t, state.Connected())

	tools.reply("snowflake_drop_table", `{"status":"error","message":"not found"}`)
	assert.EqualError(t, o.DropTable("LANGCHAIN_GONE"), "not found")
}

func TestEmbedParsesVectors(t *testing.T) {
	tools := newFakeDispatcher()
	tools.reply("snowflake_create_embeddings", `{
		"status": "success",
		"embeddings": [[0.1, 0.2], [0.3, 0.4]]
	}`)
	o := New(tools, connectedState(), history.New(), Config{EmbeddingModel: "multilingual-e5-large"}, nil)

	vectors, err := o.Embed([]string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{0.1, 0.2}, {0.3, 0.4}}, vectors)
	assert.Equal(t, "multilingual-e5-large", tools.params["model"])
}

func TestNormalizeAnswer(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "prefix and newline", input: "Assistant: Paris\n is the capital", want: "Paris  is the capital"},
		{name: "no prefix", input: "plain answer", want: "plain answer"},
		{name: "leading whitespace", input: "  \tindented", want: "indented"},
		{name: "empty", input: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeAnswer(tt.input))
		})
	}
}

func TestGroupContext(t *testing.T) {
	items := []domain.ContextItem{
		{Content: "c1", Metadata: map[string]any{"db_table": "LANGCHAIN_DOCS", "source": "dir/report.pdf"}},
		{Content: "c2", Metadata: map[string]any{"db_table": "LANGCHAIN_WEB", "source": "https://example.com/page"}},
		{Content: "c3", Metadata: map[string]any{"db_table": "LANGCHAIN_DOCS", "source": "notes.txt"}},
		{Content: "c4", Metadata: map[string]any{}},
	}

	groups := GroupContext(items, "LANGCHAIN_FALLBACK")
	require.Len(t, groups, 3)

	assert.Equal(t, "DOCS", groups[0].Table)
	require.Len(t, groups[0].Items, 2)
	assert.Equal(t, "report.pdf", groups[0].Items[0].Filename)
	assert.Empty(t, groups[0].Items[0].SourceURL)

	assert.Equal(t, "WEB", groups[1].Table)
	assert.Equal(t, "https://example.com/page", groups[1].Items[0].SourceURL)

	assert.Equal(t, "FALLBACK", groups[2].Table)
	assert.Equal(t, "unknown", groups[2].Items[0].Filename)
}
