// Package textutil provides text helpers for download filenames, object
// path tokens, and display titles.
package textutil
