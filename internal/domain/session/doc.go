// Package session owns the ordered collection of simulated browser windows.
//
// A Store keeps sessions in display order. Position is the only notion of
// order: persisted order, exported order and rendering order all follow the
// slice.
//
// Components:
//   - Store: create, close, navigate, refresh fingerprint, reorder, reload
//   - URL normalization and the permissive URL shape check
//   - Monotonic session id source (millisecond clock + counter)
//
// Navigation Semantics:
//  1. The input gets an https:// scheme when it has none
//  2. The result is matched against a permissive pattern, not a URL grammar
//  3. Success replaces the url and clears the error
//  4. Failure keeps the previous url and records a descriptive error
//
// Example Usage:
//
//	store := session.NewStore(generator)
//	sess, err := store.Create(ctx, profile, "https://example.com")
//	err = store.Navigate(0, "example.org")
package session
