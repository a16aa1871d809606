package domain

// Dispatcher issues remote tool calls and normalizes their results.
// CallJSON never fails: transport and protocol errors are folded into an
// error envelope so callers always branch on the status field.
type Dispatcher interface {
	CallJSON(name string, params map[string]any) Envelope
	CallText(nameOrURI string, params map[string]any) (string, error)
}

// BlobStore is a key-value blob store with list/get/delete semantics.
// Implementations normalize bucket names (lowercase, spaces to hyphens)
// before every call.
type BlobStore interface {
	ListBuckets() ([]string, error)
	ListObjects(bucket string) ([]string, error)
	GetObject(bucket, object string) ([]byte, error)
	DeleteObject(bucket, object string) error
	SourceURL(bucket, object string) string
}

// Parser turns raw file bytes into one or more ordered documents.
type Parser interface {
	Supported(filename string) bool
	Parse(content []byte, filename string) ([]Document, error)
}

// URLLoader fetches a web page and parses it into documents.
type URLLoader interface {
	Load(url string) ([]Document, error)
}

// Splitter splits parsed documents into retrieval chunks.
type Splitter interface {
	Split(docs []Document) []Chunk
}
