/*
Package workspace owns the window collection and everything that acts on it.

Every user action goes through Manager. Operations are serialized by one
mutex, so from the caller's point of view there is a single control thread.
Each operation reports exactly one notification and persists immediately
after a successful mutation.

Saving takes a separate lock. The autosave timer saves through that lock only,
which lets Manager re-arm the timer while holding the operation lock without
waiting on itself.
*/
package workspace
