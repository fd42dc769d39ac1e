package model

// Metric is the similarity metric a collection is declared with
type Metric string

const (
	MetricCosine Metric = "cosine"
)

// Document is one entry of a vector collection. ID is the source filename.
type Document struct {
	ID        string            `json:"id"`
	Text      string            `json:"text"`
	Embedding []float32         `json:"-"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Metadata keys recorded for ingested documents
const (
	MetaFilename = "filename"
	MetaSHA256   = "sha256"
	MetaSize     = "size"
)

// SearchResult is a ranked hit returned by a vector query
type SearchResult struct {
	ID       string            `json:"id"`
	Text     string            `json:"text"`
	Distance float64           `json:"distance"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Similarity reports the hit's similarity as 1 - distance
func (r SearchResult) Similarity() float64 {
	return 1 - r.Distance
}
