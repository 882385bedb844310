// Package autosave runs the periodic save. Exactly one timer is alive per
// Scheduler; re-arming tears the old one down before the new one starts.
package autosave
