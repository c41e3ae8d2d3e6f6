package rag

import "github.com/fyrsmithlabs/newsrag/internal/document"

// Response is the answer to one query together with what it was grounded on.
type Response struct {
	UserQuery    string
	LLMResponse  string
	RelevantDocs []document.Document
}

// TextResponse returns the model's answer.
func (r *Response) TextResponse() string {
	return r.LLMResponse
}

// Images returns the image documents among the relevant documents, in
// retrieval order.
func (r *Response) Images() []*document.ImageDocument {
	var images []*document.ImageDocument
	for _, d := range r.RelevantDocs {
		if img, ok := d.(*document.ImageDocument); ok {
			images = append(images, img)
		}
	}
	return images
}

// Sources returns the distinct source URLs of the relevant documents in
// first-seen order. Documents without a source are skipped.
func (r *Response) Sources() []string {
	seen := make(map[string]struct{}, len(r.RelevantDocs))
	var sources []string
	for _, d := range r.RelevantDocs {
		src := d.Metadata()[document.KeySourceURL]
		if src == "" {
			continue
		}
		if _, ok := seen[src]; ok {
			continue
		}
		seen[src] = struct{}{}
		sources = append(sources, src)
	}
	return sources
}
