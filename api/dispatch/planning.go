package dispatch

import (
	"net/http"
	"time"

	"github.com/fleetops/dispatchd/core/model"
	"github.com/fleetops/dispatchd/core/store"
)

func (h *Handler) requestPlanning(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Date        string   `json:"date"`
		OrderIDs    []string `json:"order_ids"`
		RequestedBy string   `json:"requested_by"`
	}
	if err := decode(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	date, err := time.Parse(time.DateOnly, req.Date)
	if err != nil {
		h.fail(w, invalid(err))
		return
	}
	sess, err := h.planning.Request(r.Context(), req.OrderIDs, date, req.RequestedBy)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.respond(w, http.StatusAccepted, sess)
}

func (h *Handler) listPlanning(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.SessionFilter{Status: model.PlanningStatus(q.Get("status"))}
	if raw := q.Get("date"); raw != "" {
		d, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			h.fail(w, invalid(err))
			return
		}
		f.Date = d
	}
	list, err := h.planning.List(r.Context(), f)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.respond(w, http.StatusOK, list)
}

func (h *Handler) unconsumedPlanning(w http.ResponseWriter, r *http.Request) {
	date, err := parseDate(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	list, err := h.planning.Unconsumed(r.Context(), date)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.respond(w, http.StatusOK, list)
}

func (h *Handler) getPlanning(w http.ResponseWriter, r *http.Request) {
	sess, err := h.planning.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	h.respond(w, http.StatusOK, sess)
}

func (h *Handler) acceptPlanning(w http.ResponseWriter, r *http.Request) {
	sess, err := h.planning.Accept(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	h.respond(w, http.StatusOK, sess)
}

func (h *Handler) rejectPlanning(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	_ = decode(r, &req) // reason is optional
	sess, err := h.planning.Reject(r.Context(), r.PathValue("id"), req.Reason)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.respond(w, http.StatusOK, sess)
}

func (h *Handler) consumePlanning(w http.ResponseWriter, r *http.Request) {
	sess, err := h.planning.Consume(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	h.respond(w, http.StatusOK, sess)
}

func (h *Handler) cancelPlanning(w http.ResponseWriter, r *http.Request) {
	if err := h.planning.Cancel(r.Context(), r.PathValue("id")); err != nil {
		h.fail(w, err)
		return
	}
	h.respond(w, http.StatusAccepted, nil)
}
