package weighting

// Counter maintains document frequencies over a corpus of token lists, where
// each dictionary entity is one document.
type Counter struct {
	N  int64            // total number of documents
	Nx map[string]int64 // document frequency per token
}

// NewCounter creates a new document-frequency counter
func NewCounter() *Counter {
	return &Counter{
		N:  0,
		Nx: make(map[string]int64),
	}
}

// AddDocument updates counts for one document. Repeated tokens within the
// document count once.
func (c *Counter) AddDocument(tokens []string) {
	c.N++

	seen := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		c.Nx[t]++
	}
}

// GetTokenCount returns the document frequency for a token
func (c *Counter) GetTokenCount(t string) int64 {
	return c.Nx[t]
}

// TotalDocs returns the total number of documents processed
func (c *Counter) TotalDocs() int64 {
	return c.N
}

// UniqueTokens returns the number of unique tokens
func (c *Counter) UniqueTokens() int {
	return len(c.Nx)
}
