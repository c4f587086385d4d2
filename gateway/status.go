package gateway

import (
	"encoding/json"
	"net/http"
	"time"
)

// LinkStatus is the per-interface snapshot reported at /status.
type LinkStatus struct {
	Name   string `json:"name"`
	MyCall string `json:"mycall"`
}

// Status is the full station snapshot reported at /status.
type Status struct {
	UptimeSeconds float64      `json:"uptime_seconds"`
	Links         []LinkStatus `json:"links"`
	DigipeaterLen int          `json:"digipeater_aliases"`
}

var startedAt = time.Now()

// Status builds a point-in-time snapshot of the station.
func (s *Station) Status() Status {
	links := s.Links()
	out := Status{
		UptimeSeconds: time.Since(startedAt).Seconds(),
		DigipeaterLen: s.Digipeater.AliasCount(),
	}
	for _, l := range links {
		out.Links = append(out.Links, LinkStatus{Name: l.Name, MyCall: l.MyCall.String()})
	}
	return out
}

// StatusHandler serves the station's Status as JSON, the diagnostic
// surface this daemon ships in place of a full metrics subsystem
// (spec.md's Non-goals exclude the latter).
func (s *Station) StatusHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(s.Status()); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
}
