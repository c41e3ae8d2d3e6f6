// Package ingest builds a vector store from news article URLs.
//
// A run loads each page (fetch, then parse), preprocesses it into text chunks
// and captioned images, writes the image documents to the side store, embeds
// every document's content and adds the result to the vector store, which is
// then checkpointed.
//
//	loader, _ := ingest.NewLoader(fetcher, parse.NewGoqueryParser(logger), parse.NewsArticleConfig(), logger)
//	p, _ := ingest.NewPipeline(ingest.Config{
//	    Loader:         loader,
//	    Preprocessor:   pre,
//	    Encoder:        encoder,
//	    Store:          store,
//	    ImageStorePath: "images.json",
//	})
//	report, err := p.Build(ctx, urls)
package ingest
