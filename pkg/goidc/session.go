package goidc

// Session represents the user's browser session.
type Session struct {
	ID    string       `json:"id" bson:"_id"`
	State SessionState `json:"state" bson:"state"`
	// Subject references the user bound to the session.
	Subject                  string            `json:"sub,omitempty" bson:"sub,omitempty"`
	AuthenticatedAtTimestamp int               `json:"auth_time,omitempty" bson:"auth_time,omitempty"`
	ACR                      string            `json:"acr,omitempty" bson:"acr,omitempty"`
	AMR                      []string          `json:"amr,omitempty" bson:"amr,omitempty"`
	Permissions              map[string]bool   `json:"permissions,omitempty" bson:"permissions,omitempty"`
	Attributes               map[string]string `json:"attributes,omitempty" bson:"attributes,omitempty"`
	// OPBrowserState is the opaque value mixed into the session_state
	// parameter so relying parties can detect session changes.
	OPBrowserState     string `json:"opbs,omitempty" bson:"opbs,omitempty"`
	CreatedAtTimestamp int    `json:"created_at" bson:"created_at"`
	ExpiresAtTimestamp int    `json:"expires_at,omitempty" bson:"expires_at,omitempty"`
}

// IsAuthenticated reports whether the session is bound to an authenticated
// user.
func (s *Session) IsAuthenticated() bool {
	return s.State == SessionStateAuthenticated && s.Subject != "" && s.AuthenticatedAtTimestamp != 0
}

// Authenticate binds the user to the session.
func (s *Session) Authenticate(sub string, authTime int) {
	s.Subject = sub
	s.AuthenticatedAtTimestamp = authTime
	s.State = SessionStateAuthenticated
}

// Logout unbinds the user from the session.
func (s *Session) Logout() {
	s.Subject = ""
	s.AuthenticatedAtTimestamp = 0
	s.State = SessionStateUnauthenticated
}

func (s *Session) GrantPermission(clientID string) {
	if s.Permissions == nil {
		s.Permissions = make(map[string]bool)
	}
	s.Permissions[clientID] = true
}

func (s *Session) IsPermissionGranted(clientID string) bool {
	return s.Permissions[clientID]
}

func (s *Session) SetAttribute(key, value string) {
	if s.Attributes == nil {
		s.Attributes = make(map[string]string)
	}
	s.Attributes[key] = value
}

func (s *Session) Attribute(key string) string {
	return s.Attributes[key]
}

func (s *Session) IsExpired(now int) bool {
	return s.ExpiresAtTimestamp != 0 && now > s.ExpiresAtTimestamp
}
