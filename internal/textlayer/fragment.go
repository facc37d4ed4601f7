package textlayer

// Fragment is the minimal unit of text the rendering layer exposes for one
// page. Fragments in ascending Index order reconstruct the page's
// reading-order text; the splits are arbitrary and carry no meaning.
type Fragment struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// Range is a contiguous run of fragment indices, inclusive on both ends.
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}
