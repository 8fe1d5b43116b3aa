package domain

// Realtime event names carried in the "event" field of a websocket frame.
const (
	EventIdentityAnnounce = "identity-announce"
	EventActivityUpdate   = "activity-update"

	EventPeerOnline         = "peer-online"
	EventRosterSnapshot     = "roster-snapshot"
	EventActivitySnapshot   = "activity-snapshot"
	EventActivityChanged    = "activity-changed"
	EventPeerOffline        = "peer-offline"
	EventAccountDeleted     = "account-deleted"
	EventAdminRightsChanged = "admin-rights-changed"
)

// DefaultActivity is the label given to a connection right after it announces.
const DefaultActivity = "idle"

// Activity is what a user is currently doing, as shown on the live roster.
type Activity struct {
	UserID   string `json:"userId"`
	Activity string `json:"activity"`
}

// AdminRights is the payload of EventAdminRightsChanged.
type AdminRights struct {
	UserID  string `json:"userId"`
	IsAdmin bool   `json:"isAdmin"`
}
