package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/tvbridge/internal/multiroom"
)

// syncCreateRequest creates a synchronized device group.
type syncCreateRequest struct {
	GroupName string   `json:"groupName"`
	DeviceIDs []string `json:"deviceIds"`
}

// syncCommandRequest fans a command out to every group member.
type syncCommandRequest struct {
	GroupName string            `json:"groupName"`
	Command   multiroom.Command `json:"command"`
}

// handleSyncCreate creates a sync group from currently-live devices.
func (s *Server) handleSyncCreate(w http.ResponseWriter, r *http.Request) {
	var req syncCreateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := s.sync.CreateGroup(r.Context(), req.GroupName, req.DeviceIDs); err != nil {
		writeOperationError(w, err)
		return
	}

	writeSuccess(w, nil)
}

// handleSyncCommand dispatches one command to every member concurrently.
// Individual member failures appear in results; the call itself succeeds
// whenever the group and command were valid.
func (s *Server) handleSyncCommand(w http.ResponseWriter, r *http.Request) {
	var req syncCommandRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	results, err := s.sync.Dispatch(r.Context(), req.GroupName, req.Command)
	if err != nil {
		writeOperationError(w, err)
		return
	}

	writeSuccess(w, map[string]any{
		"results": results,
	})
}

// handleListSyncGroups returns all stored sync groups.
func (s *Server) handleListSyncGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := s.sync.List(r.Context())
	if err != nil {
		writeOperationError(w, err)
		return
	}

	writeSuccess(w, map[string]any{
		"groups": groups,
	})
}

// handleSyncDelete removes a sync group.
func (s *Server) handleSyncDelete(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "groupName")

	if err := s.sync.DeleteGroup(r.Context(), name); err != nil {
		writeOperationError(w, err)
		return
	}

	writeSuccess(w, nil)
}
