package http

import (
	"net/http"

	"fintrack/internal/core"
)

type passwordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	u, err := s.svc.Users.Profile(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, u)
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var patch core.ProfilePatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, r, err)
		return
	}
	u, err := s.svc.Users.UpdateProfile(r.Context(), userID(r), patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, u)
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var in passwordRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.svc.Users.ChangePassword(r.Context(), userID(r), in.CurrentPassword, in.NewPassword); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, "Password updated")
}

func (s *Server) handleCurrencies(w http.ResponseWriter, r *http.Request) {
	writeOK(w, s.svc.Users.Currencies())
}
