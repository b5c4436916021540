package bot

import "time"

// State identifies a step in the conversational flow.
type State string

const (
	StateNew               State = "new"
	StateUserTypeSelection State = "user_type_selection"
	StatePatientAuth       State = "patient_auth"
	StateStaffAuth         State = "staff_auth"
	StatePatientMenu       State = "patient_menu"
	StateStaffMenu         State = "staff_menu"
)

// UserType classifies who is on the other end of the conversation.
type UserType string

const (
	UserTypeNone    UserType = ""
	UserTypePatient UserType = "patient"
	UserTypeStaff   UserType = "staff"
)

// Session is the authoritative per-identity conversation record. The
// identity key is the WhatsApp address of the sender. A session is never
// deleted, only reset in place on logout, restart or expiry.
type Session struct {
	Identity      string            `json:"identity"`
	State         State             `json:"state"`
	UserType      UserType          `json:"userType"`
	Authenticated bool              `json:"authenticated"`
	Token         string            `json:"token,omitempty"`
	Attributes    map[string]string `json:"attributes"`
	LastActivity  time.Time         `json:"lastActivity"`
	CreatedAt     time.Time         `json:"createdAt"`
}

// Attribute keys stored on authenticated sessions. AttrCareToken holds
// the backend-issued credential used on record API calls; Session.Token
// is the locally issued lifecycle credential and never leaves the bot.
const (
	AttrUserID    = "user_id"
	AttrStaffName = "staff_name"
	AttrStaffRole = "staff_role"
	AttrCareToken = "care_token"
)

// Reset returns the session to its creation defaults while keeping
// identity and creation time.
func (s *Session) Reset(now time.Time) {
	s.State = StateNew
	s.UserType = UserTypeNone
	s.Authenticated = false
	s.Token = ""
	s.Attributes = map[string]string{}
	s.LastActivity = now
}
