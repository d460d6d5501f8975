package core

// electionhttp exposes a read-only introspection surface over the
// election scheduler, spec §6's RPC surface for node operators. Grounded
// on synnergy-network's go-chi/chi/v5 usage for its HTTP
// API surfaces, reused here for a small, auth-free local endpoint set.

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// electionSummary is the JSON shape returned for one active election.
type electionSummary struct {
	Root       string `json:"root"`
	Candidates int    `json:"candidates"`
	Leader     string `json:"leader"`
}

// NewElectionRouter builds a chi.Router exposing election introspection
// endpoints backed by scheduler.
func NewElectionRouter(scheduler *Scheduler) chi.Router {
	r := chi.NewRouter()

	r.Get("/elections", func(w http.ResponseWriter, req *http.Request) {
		scheduler.mu.Lock()
		out := make([]electionSummary, 0, len(scheduler.elections))
		for root, e := range scheduler.elections {
			out = append(out, electionSummary{
				Root:       root.Hex(),
				Candidates: len(e.Candidates),
				Leader:     e.leadingHash().Hex(),
			})
		}
		scheduler.mu.Unlock()
		writeJSON(w, out)
	})

	r.Get("/elections/confirmed", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, scheduler.History())
	})

	r.Get("/elections/count", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, map[string]int{"active": scheduler.Count()})
	})

	return r
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
