// Package ws streams workspace events to browser clients over WebSocket.
//
// The Hub implements the workspace Notifier and Renderer collaborators:
// notifications and frame reload intents are broadcast as JSON events to
// every connected client.
//
// Events:
//   - {"type":"system"}: sent once on connect with the client id
//   - {"type":"notification","notification":{...}}: a user-facing outcome
//   - {"type":"reload","frame":{...}}: redraw one frame
//   - {"type":"pong"}: reply to a client {"type":"ping"}
//
// Notification text is sanitized with a strict bluemonday policy before it
// leaves the process.
package ws
