package citations

// Citation is the canonical record linking a generated answer to a specific
// document/page/excerpt source. Instances are immutable once created; they are
// stored verbatim on the owning message and discarded with it.
type Citation struct {
	DocumentID       string  `json:"document_id"`
	DocumentFilename string  `json:"document_filename,omitempty"`
	PageNumber       int     `json:"page_number"`
	TextExcerpt      string  `json:"text_excerpt"`
	StartPosition    *int    `json:"start_position,omitempty"`
	EndPosition      *int    `json:"end_position,omitempty"`
	Confidence       float64 `json:"confidence"`
}

// Policy carries the citation-shaping caps. The zero value is not usable;
// call DefaultPolicy and override fields from configuration.
type Policy struct {
	// MaxCitations bounds the list handed to the UI.
	MaxCitations int
	// MaxExcerptChars bounds excerpt length; longer source text is truncated
	// with a trailing marker.
	MaxExcerptChars int
	// DedupPrefixChars is how much of the normalized excerpt participates in
	// the dedup key.
	DedupPrefixChars int
}

func DefaultPolicy() Policy {
	return Policy{
		MaxCitations:     5,
		MaxExcerptChars:  500,
		DedupPrefixChars: 50,
	}
}
