// Package prompt renders conversation history into the textual grammar a
// model family expects, and owns the stop words and filename based format
// inference that go with each grammar.
//
// Everything here is pure: no I/O, no shared state.
package prompt
