package cache

import (
	"time"

	"github.com/Norgate-AV/alv/internal/models"
)

// Record is the cached state for one org alias
type Record struct {
	// Logs is the last fetched log index, with download state merged in
	Logs []models.LogEntity `json:"logs"`

	// LastFetched is when Logs was captured; zero if never fetched
	LastFetched time.Time `json:"last_fetched"`

	// Downloaded lists the ids of logs whose bodies are stored locally
	Downloaded []string `json:"downloaded"`

	// Paths maps a downloaded log id to its local file
	Paths map[string]string `json:"paths"`

	// SelectedOrg is the org last chosen for this alias, if any
	SelectedOrg *models.OrgContext `json:"selected_org,omitempty"`
	SelectedAt  time.Time          `json:"selected_at,omitempty"`
}

func (r *Record) normalize() {
	if r.Logs == nil {
		r.Logs = []models.LogEntity{}
	}

	if r.Downloaded == nil {
		r.Downloaded = []string{}
	}

	if r.Paths == nil {
		r.Paths = make(map[string]string)
	}
}

// Fresh reports whether the log index was fetched less than ttl ago
func (r Record) Fresh(ttl time.Duration, now time.Time) bool {
	return !r.LastFetched.IsZero() && now.Sub(r.LastFetched) < ttl
}

// Path returns the local file of a downloaded log
func (r Record) Path(id string) (string, bool) {
	p, ok := r.Paths[id]
	return p, ok && p != ""
}

// Patch mutates a record inside Store.Put
type Patch func(*Record)

// WithLogs replaces the log index, keeping the download state of known ids
func WithLogs(logs []models.LogEntity, fetchedAt time.Time) Patch {
	return func(r *Record) {
		r.Logs = make([]models.LogEntity, len(logs))
		copy(r.Logs, logs)

		for i := range r.Logs {
			if p, ok := r.Paths[r.Logs[i].ID]; ok {
				r.Logs[i].Downloaded = true
				r.Logs[i].LocalPath = p
			}
		}

		r.LastFetched = fetchedAt
	}
}

// MarkDownloaded records that the body of id is stored at path
func MarkDownloaded(id, path string) Patch {
	return func(r *Record) {
		if _, ok := r.Paths[id]; !ok {
			r.Downloaded = append(r.Downloaded, id)
		}

		r.Paths[id] = path

		for i := range r.Logs {
			if r.Logs[i].ID == id {
				r.Logs[i].Downloaded = true
				r.Logs[i].LocalPath = path
			}
		}
	}
}

// WithSelectedOrg records the selected org
func WithSelectedOrg(org models.OrgContext, at time.Time) Patch {
	return func(r *Record) {
		o := org
		r.SelectedOrg = &o
		r.SelectedAt = at
	}
}

// OrgSnapshot is the cached categorized org list
type OrgSnapshot struct {
	Orgs models.OrgList `json:"orgs"`

	// Timestamp is the capture time in epoch milliseconds
	Timestamp int64 `json:"timestamp"`
}

// CapturedAt returns Timestamp as a time
func (s OrgSnapshot) CapturedAt() time.Time {
	return time.UnixMilli(s.Timestamp)
}

// OrgTestClasses is the cached test class index of one org
type OrgTestClasses struct {
	Classes   []models.TestClass `json:"classes"`
	Timestamp time.Time          `json:"timestamp"`
}
