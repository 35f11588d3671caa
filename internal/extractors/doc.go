// Package extractors builds the configured Extractor and applies the item
// policy every variant shares.
//
// Variants live in sub-packages:
//
//   - api: paginated REST sources (WordPress shape by default)
//   - filesystem: a content root of Markdown, HTML and text files
//   - sitemap: an XML sitemap or sitemap index
//   - delegated: items handed over by the host application
//
// The fetch sub-package is the HTTP client shared by api and sitemap.
package extractors
