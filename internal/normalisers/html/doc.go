// Package html provides a Normaliser implementation for HTML documents.
// It parses the document with goquery, drops scripts, styles and page
// chrome, and returns the readable text of the body.
package html
