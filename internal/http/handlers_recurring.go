package http

import (
	"net/http"

	"fintrack/internal/core"
	"fintrack/internal/services"
)

func (s *Server) handleListRecurring(w http.ResponseWriter, r *http.Request) {
	p := newQueryParser(r)
	active := p.boolPtr("active")
	if err := p.err(); err != nil {
		writeError(w, r, err)
		return
	}
	items, err := s.svc.Recurring.List(r.Context(), userID(r), active)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, items)
}

func (s *Server) handleGetRecurring(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rt, err := s.svc.Recurring.Get(r.Context(), userID(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, rt)
}

func (s *Server) handleCreateRecurring(w http.ResponseWriter, r *http.Request) {
	var in core.RecurringTransaction
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	rt, err := s.svc.Recurring.Create(r.Context(), userID(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCreated(w, rt)
}

func (s *Server) handleUpdateRecurring(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var patch core.RecurringPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, r, err)
		return
	}
	rt, err := s.svc.Recurring.Update(r.Context(), userID(r), id, patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, rt)
}

func (s *Server) handleDeleteRecurring(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.svc.Recurring.Delete(r.Context(), userID(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, "Recurring transaction deleted")
}

func (s *Server) handleUpcomingRecurring(w http.ResponseWriter, r *http.Request) {
	p := newQueryParser(r)
	days := p.integer("days")
	if err := p.err(); err != nil {
		writeError(w, r, err)
		return
	}
	upcoming, err := s.svc.Recurring.Upcoming(r.Context(), userID(r), days)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, upcoming)
}

// handleGenerateDue catches up every due schedule of the caller.
func (s *Server) handleGenerateDue(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.Recurring.GenerateDue(r.Context(), s.svc.Recurring.Today(), services.ForUser(userID(r)))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, res)
}

// handleGenerateOne materializes the next occurrence now, even when it is
// not yet due.
func (s *Server) handleGenerateOne(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	tx, err := s.svc.Recurring.GenerateOne(r.Context(), userID(r), id, s.svc.Recurring.Today())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCreated(w, tx)
}
