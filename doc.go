// Package sage provides rule-driven questionnaires.
//
// A knowledge base's rules pick the next question from what has been
// answered so far, and when nothing is left to ask, its
// recommendations are the result.  The session machinery is in
// package 'core', engines are in 'engines', and the command is in
// `cmd/sage`.
package sage
