package controllers

import (
	"errors"
	"net/http"

	"github.com/MrMoose/rescue/internal/runtime"
	"github.com/MrMoose/rescue/internal/workqueue"
)

// QueuesController exposes read-mostly queue endpoints for operators.
type QueuesController struct {
	rt *runtime.Runtime
}

func NewQueuesController(rt *runtime.Runtime) *QueuesController {
	return &QueuesController{rt: rt}
}

// RegisterRoutes registers /v1/stats, /v1/winners and /v1/candidates.
func (c *QueuesController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/stats", c.handleStats)
	mux.HandleFunc("/v1/winners", c.handleWinners)
	mux.HandleFunc("/v1/candidates", c.handleInsert)
}

func (c *QueuesController) queue(w http.ResponseWriter, r *http.Request, ns string) (*workqueue.Queue, bool) {
	q, err := c.rt.Queue(r.Context(), ns)
	if err != nil {
		writeError(w, namespaceStatus(err), err.Error())
		return nil, false
	}
	return q, true
}

func (c *QueuesController) handleStats(w http.ResponseWriter, r *http.Request) {
	ns := r.URL.Query().Get("namespace")
	q, ok := c.queue(w, r, ns)
	if !ok {
		return
	}
	st, err := q.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	solved, err := q.Solved(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, map[string]any{"namespace": q.Namespace(), "stats": statsFields(st), "solved": solved})
}

func (c *QueuesController) handleWinners(w http.ResponseWriter, r *http.Request) {
	q, ok := c.queue(w, r, r.URL.Query().Get("namespace"))
	if !ok {
		return
	}
	winners, err := q.Winners(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, map[string]any{"namespace": q.Namespace(), "winners": anyList(winners)})
}

func (c *QueuesController) handleInsert(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	req, err := readObject(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	q, ok := c.queue(w, r, req.GetFields()["namespace"].GetStringValue())
	if !ok {
		return
	}
	var inserted, known, rejected int
	for _, v := range listValues(req.GetFields()["candidates"]) {
		// non-string entries count as rejected
		cand, _ := v.(string)
		res, err := q.Insert(r.Context(), cand)
		switch {
		case errors.Is(err, workqueue.ErrEmptyCandidate):
			rejected++
		case err != nil:
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		case res == workqueue.AlreadyKnown:
			known++
		default:
			inserted++
		}
	}
	writeJSON(w, map[string]any{"inserted": inserted, "alreadyKnown": known, "rejected": rejected})
}
