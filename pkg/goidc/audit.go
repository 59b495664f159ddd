package goidc

type AuditAction string

const (
	AuditActionUserAuthorization AuditAction = "USER_AUTHORIZATION"
)

// AuditEntry is emitted once for every authorization request, whatever its
// outcome.
type AuditEntry struct {
	ID        string      `json:"id"`
	Action    AuditAction `json:"action"`
	IP        string      `json:"ip,omitempty"`
	ClientID  string      `json:"client_id,omitempty"`
	Scope     string      `json:"scope,omitempty"`
	Username  string      `json:"username,omitempty"`
	Success   bool        `json:"success"`
	Timestamp int         `json:"timestamp"`
}

// PushNotification contains the artifacts delivered to a client's
// notification endpoint in CIBA push mode.
type PushNotification struct {
	AuthReqID               string `json:"auth_req_id"`
	Endpoint                string `json:"-"`
	ClientNotificationToken string `json:"-"`
	AccessToken             string `json:"access_token"`
	TokenType               string `json:"token_type"`
	RefreshToken            string `json:"refresh_token,omitempty"`
	ExpiresIn               int    `json:"expires_in"`
	IDToken                 string `json:"id_token"`
}
