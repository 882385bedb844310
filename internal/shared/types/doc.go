// Package types provides shared data structures for the DeviceMatrix backend.
//
// These types define the persisted and exported wire shapes, so their JSON
// tags are part of the storage format and must stay stable.
//
// Core Types:
//   - DeviceProfile: Synthetic device identity (platform, model, user-agent, fingerprint)
//   - Session: One simulated browser window with its profile and load state
//   - Settings: User settings persisted next to the sessions
//   - FrameSpec: Per-session view consumed by the rendering front-end
//   - Notification: User-facing outcome message
//
// Example Usage:
//
//	sess := types.Session{
//	    ID:            1700000000000,
//	    DeviceProfile: profile,
//	    URL:           "https://example.com",
//	}
package types
