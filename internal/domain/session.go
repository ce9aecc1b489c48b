package domain

// Session is the persisted "current session" marker.
type Session struct {
	IsAuthenticated bool        `json:"isAuthenticated"`
	User            SessionUser `json:"user"`
}

// SessionUser is the reduced projection of the logged-in user.
type SessionUser struct {
	ID          string `json:"id"                    yaml:"id"`
	Name        string `json:"name"                  yaml:"name"`
	Email       string `json:"email"                 yaml:"email"`
	CompanyName string `json:"companyName,omitempty" yaml:"companyName,omitempty"`
	Plan        string `json:"plan,omitempty"        yaml:"plan,omitempty"`
}

// NewSession creates an authenticated session for the given user.
func NewSession(user *User) Session {
	return Session{
		IsAuthenticated: true,
		User:            user.Session(),
	}
}

// SessionResponse is the state reported to clients asking about the current session.
type SessionResponse struct {
	IsAuthenticated bool         `json:"isAuthenticated"`
	User            *SessionUser `json:"user,omitempty"`
}
