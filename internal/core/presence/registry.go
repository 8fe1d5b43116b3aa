package presence

import (
	"sort"
	"time"

	"github.com/dhammastream/backoffice/internal/core/domain"
)

// Entry is one open realtime connection. UserID stays empty until the client
// announces its identity.
type Entry struct {
	ConnectionID string
	UserID       string
	Activity     string
	ConnectedAt  time.Time
}

// Registry tracks open connections and derives account presence from them.
// It is not safe for concurrent use; Service confines it to one goroutine.
type Registry struct {
	conns    map[string]*Entry
	refs     map[string]int
	activity map[string]string
}

func NewRegistry() *Registry {
	return &Registry{
		conns:    make(map[string]*Entry),
		refs:     make(map[string]int),
		activity: make(map[string]string),
	}
}

// Connect registers a physical connection that has not announced yet.
func (r *Registry) Connect(connID string, at time.Time) {
	if _, ok := r.conns[connID]; ok {
		return
	}
	r.conns[connID] = &Entry{ConnectionID: connID, ConnectedAt: at}
}

// Announce binds connID to userID. first is true when this is the account's
// only live connection, i.e. the account just came online. Re-announcing a
// connection under another user moves it; left names the previous user when
// the move took that account offline.
func (r *Registry) Announce(connID, userID string, at time.Time) (first bool, left string) {
	e, ok := r.conns[connID]
	if !ok {
		e = &Entry{ConnectionID: connID, ConnectedAt: at}
		r.conns[connID] = e
	}
	if e.UserID == userID {
		return false, ""
	}
	if e.UserID != "" && r.release(e.UserID) {
		left = e.UserID
	}

	e.UserID = userID
	r.refs[userID]++
	if r.refs[userID] == 1 {
		r.activity[userID] = domain.DefaultActivity
		return true, left
	}
	return false, left
}

// SetActivity records the label for an online account. It reports false for
// accounts without a live connection.
func (r *Registry) SetActivity(userID, label string) bool {
	if r.refs[userID] == 0 {
		return false
	}
	r.activity[userID] = label
	return true
}

// Disconnect forgets connID. last is true when it was the account's final
// connection and the account is now offline.
func (r *Registry) Disconnect(connID string) (userID string, last bool) {
	e, ok := r.conns[connID]
	if !ok {
		return "", false
	}
	delete(r.conns, connID)
	if e.UserID == "" {
		return "", false
	}
	return e.UserID, r.release(e.UserID)
}

func (r *Registry) release(userID string) bool {
	r.refs[userID]--
	if r.refs[userID] > 0 {
		return false
	}
	delete(r.refs, userID)
	delete(r.activity, userID)
	return true
}

// IsOnline reports whether userID has at least one announced connection.
func (r *Registry) IsOnline(userID string) bool {
	return r.refs[userID] > 0
}

// Online returns the ids of all online accounts, sorted.
func (r *Registry) Online() []string {
	out := make([]string, 0, len(r.refs))
	for id := range r.refs {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Activities returns the activity of every online account, sorted by user.
func (r *Registry) Activities() []domain.Activity {
	out := make([]domain.Activity, 0, len(r.activity))
	for id, label := range r.activity {
		out = append(out, domain.Activity{UserID: id, Activity: label})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// ConnectionsOf returns the connection ids announced by userID.
func (r *Registry) ConnectionsOf(userID string) []string {
	var out []string
	for id, e := range r.conns {
		if e.UserID == userID {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// Len returns the number of open connections, announced or not.
func (r *Registry) Len() int {
	return len(r.conns)
}
