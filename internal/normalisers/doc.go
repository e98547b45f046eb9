// Package normalisers extracts text from local files.
//
// Each subpackage implements driven.Normaliser for one format. Loader
// picks the normaliser for a path by its extension and wraps the text
// in a domain.Document.
package normalisers
