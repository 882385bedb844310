// Package device generates synthetic device identities for simulated windows.
//
// A Generator draws every field of a profile from a validated Catalog:
//   - Android: brand, then a model from that brand's list, OS version, resolution
//   - iOS: model, version, resolution
//
// The user-agent is synthesized from a per-platform template and the profile
// gets an opaque fingerprint token built from the platform, brand, model, the
// current millisecond timestamp and a random base-36 suffix.
//
// Catalogs are validated when the Generator is built. An empty list anywhere
// in the catalog is a construction error, so Generate never returns a
// partial profile.
//
// Example Usage:
//
//	gen, err := device.NewGenerator(device.DefaultCatalog())
//	profile, err := gen.Generate(ctx, device.StrategyRandom)
package device
