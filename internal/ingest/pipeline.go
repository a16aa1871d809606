package ingest

import (
	"fmt"
	"path"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"docchat/internal/domain"
	"docchat/internal/session"
)

// reservedFilename is never ingested regardless of its bucket.
const reservedFilename = "questions.txt"

// createVectorStoreTool is the remote tool that embeds and stores chunks.
const createVectorStoreTool = "snowflake_create_vector_store"

// Report summarizes one ingestion run.
type Report struct {
	RunID   string
	Bucket  string
	Files   []string
	URLs    []string
	Skipped []string
	Chunks  int
	Elapsed time.Duration
}

// Empty reports whether the run found nothing to ingest.
func (r *Report) Empty() bool { return len(r.Files) == 0 && len(r.URLs) == 0 }

// Pipeline pulls raw objects from blob storage and user-supplied URLs,
// parses and splits them, and hands the chunk set to the remote
// vector-store-creation tool for exactly one target collection.
type Pipeline struct {
	blob     domain.BlobStore
	parser   domain.Parser
	urls     domain.URLLoader
	splitter domain.Splitter
	tools    domain.Dispatcher
	log      *zap.Logger
	running  atomic.Bool
}

// New assembles a pipeline from its collaborators.
func New(blob domain.BlobStore, parser domain.Parser, urls domain.URLLoader, splitter domain.Splitter, tools domain.Dispatcher, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{blob: blob, parser: parser, urls: urls, splitter: splitter, tools: tools, log: log}
}

// Run ingests one bucket plus optional URLs into the state's target
// collection. Zero matching documents is a no-op, not an error. On success
// the vector store is marked connected; on failure it stays unconnected
// and the remote message is returned.
func (p *Pipeline) Run(bucket string, urls []string, state *session.State) (*Report, error) {
	if !p.running.CompareAndSwap(false, true) {
		return nil, domain.ErrIngestRunning
	}
	defer p.running.Store(false)

	start := time.Now()
	report := &Report{RunID: uuid.NewString(), Bucket: bucket}

	objects, err := p.blob.ListObjects(bucket)
	if err != nil {
		return nil, err
	}

	var docs []domain.Document
	for _, object := range objects {
		if !p.parser.Supported(object) {
			report.Skipped = append(report.Skipped, object)
			continue
		}
		if path.Base(object) == reservedFilename {
			report.Skipped = append(report.Skipped, object)
			continue
		}
		data, err := p.blob.GetObject(bucket, object)
		if err != nil {
			p.log.Warn("object download failed", zap.String("object", object), zap.Error(err))
			report.Skipped = append(report.Skipped, object)
			continue
		}
		parsed, err := p.parser.Parse(data, object)
		if err != nil {
			p.log.Warn("object parse failed", zap.String("object", object), zap.Error(err))
			report.Skipped = append(report.Skipped, object)
			continue
		}
		source := p.blob.SourceURL(bucket, object)
		for i := range parsed {
			stampProvenance(&parsed[i], source)
		}
		docs = append(docs, parsed...)
		report.Files = append(report.Files, object)
	}

	for _, url := range urls {
		url = strings.TrimSpace(url)
		if url == "" {
			continue
		}
		parsed, err := p.urls.Load(url)
		if err != nil {
			p.log.Warn("url load failed", zap.String("url", url), zap.Error(err))
			continue
		}
		for i := range parsed {
			stampProvenance(&parsed[i], url)
		}
		docs = append(docs, parsed...)
		report.URLs = append(report.URLs, url)
	}

	if len(docs) == 0 {
		report.Elapsed = time.Since(start)
		p.log.Info("nothing to ingest", zap.String("bucket", bucket), zap.String("run_id", report.RunID))
		return report, nil
	}

	chunks := p.splitter.Split(docs)
	texts := make([]string, len(chunks))
	metadatas := make([]map[string]any, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
		metadatas[i] = chunk.Metadata
	}
	report.Chunks = len(chunks)

	table := state.TargetTable()
	env := p.tools.CallJSON(createVectorStoreTool, map[string]any{
		"table_name":    table,
		"texts":         texts,
		"metadatas":     metadatas,
		"model":         state.EmbeddingModel(),
		"vector_length": state.VectorLength(),
	})
	if !env.OK() {
		return report, fmt.Errorf("creating vector store: %s", env.Message())
	}
	state.MarkConnected()
	report.Elapsed = time.Since(start)
	p.log.Info("ingestion complete",
		zap.String("run_id", report.RunID),
		zap.String("table", table),
		zap.Int("files", len(report.Files)),
		zap.Int("chunks", report.Chunks),
		zap.Duration("elapsed", report.Elapsed))
	return report, nil
}

// stampProvenance defaults missing page metadata to 0 and records the
// canonical source unless the parser already set one.
func stampProvenance(doc *domain.Document, source string) {
	if doc.Metadata == nil {
		doc.Metadata = map[string]any{}
	}
	if _, ok := doc.Metadata["page"]; !ok {
		doc.Metadata["page"] = 0
	}
	if _, ok := doc.Metadata["source"]; !ok {
		doc.Metadata["source"] = source
	}
}
