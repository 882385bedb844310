package types

import "time"

// Session represents one simulated browser window
type Session struct {
	ID int64 `json:"id"`
	DeviceProfile
	URL       string  `json:"url"`
	IsLoading bool    `json:"isLoading"`
	Error     *string `json:"error"`
}

// Clone returns a deep copy of the session
func (s Session) Clone() Session {
	if s.Error != nil {
		msg := *s.Error
		s.Error = &msg
	}
	return s
}

// ErrorMessage returns the error text or an empty string
func (s Session) ErrorMessage() string {
	if s.Error == nil {
		return ""
	}
	return *s.Error
}

// CloneSessions deep-copies a session slice
func CloneSessions(sessions []Session) []Session {
	out := make([]Session, len(sessions))
	for i, s := range sessions {
		out[i] = s.Clone()
	}
	return out
}

// Settings holds user-tunable workspace settings
type Settings struct {
	DefaultURL       string `json:"defaultUrl"`
	DeviceStrategy   string `json:"deviceStrategy"`
	AutoSaveInterval int    `json:"autoSaveInterval"` // seconds
}

// AutoSaveDuration returns the autosave interval as a duration
func (s Settings) AutoSaveDuration() time.Duration {
	return time.Duration(s.AutoSaveInterval) * time.Second
}

// Bundle is the self-contained export/import document
type Bundle struct {
	Windows  []Session `json:"windows"`
	Settings Settings  `json:"settings"`
}

// FrameSpec is what the rendering front-end needs to draw one window
type FrameSpec struct {
	Index     int      `json:"index"`
	ID        int64    `json:"id"`
	URL       string   `json:"url"`
	IsLoading bool     `json:"isLoading"`
	Error     *string  `json:"error"`
	Sandbox   []string `json:"sandbox"`
}

// Severity classifies a user notification
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
	SeverityInfo    Severity = "info"
)

// Notification is a user-facing outcome message
type Notification struct {
	Message  string    `json:"message"`
	Severity Severity  `json:"severity"`
	Time     time.Time `json:"time"`
}
