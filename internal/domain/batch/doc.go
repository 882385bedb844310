// Package batch fans an operation out over every open window.
//
// Work is issued in window order on a bounded errgroup; completions arrive in
// any order. One failing window never stops the others, and the Result is
// produced only after every window was attempted.
package batch
