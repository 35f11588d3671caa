// Package normalisers provides implementations of the Normaliser interface
// for the content formats a site is written in. Each normaliser knows how
// to extract a title and readable text from a specific MIME type.
//
// The package also holds the text measures shared by every extractor:
// word counts, excerpts and a coarse language guess.
package normalisers
