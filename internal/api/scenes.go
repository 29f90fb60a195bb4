package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/tvbridge/internal/scene"
)

// sceneSaveRequest creates or replaces a named scene.
type sceneSaveRequest struct {
	SceneName string      `json:"sceneName"`
	Scene     scene.Scene `json:"scene"`
}

// sceneExecuteRequest replays a scene against one device.
type sceneExecuteRequest struct {
	SceneName string `json:"sceneName"`
	DeviceID  string `json:"deviceId"`
}

// handleSceneSave validates and persists a scene definition.
func (s *Server) handleSceneSave(w http.ResponseWriter, r *http.Request) {
	var req sceneSaveRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	sc := req.Scene
	sc.Name = req.SceneName
	if err := s.scenes.Save(r.Context(), &sc); err != nil {
		writeOperationError(w, err)
		return
	}

	writeSuccess(w, nil)
}

// handleSceneExecute replays the named scene's steps against the device.
func (s *Server) handleSceneExecute(w http.ResponseWriter, r *http.Request) {
	var req sceneExecuteRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := s.scenes.Execute(r.Context(), req.SceneName, req.DeviceID); err != nil {
		writeOperationError(w, err)
		return
	}

	writeSuccess(w, nil)
}

// handleListScenes returns all stored scenes.
func (s *Server) handleListScenes(w http.ResponseWriter, r *http.Request) {
	scenes, err := s.scenes.List(r.Context())
	if err != nil {
		writeOperationError(w, err)
		return
	}

	writeSuccess(w, map[string]any{
		"scenes": scenes,
	})
}

// handleSceneDelete removes a stored scene. Deleting a missing scene
// reports not found without disturbing other scenes.
func (s *Server) handleSceneDelete(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	if err := s.scenes.Delete(r.Context(), name); err != nil {
		writeOperationError(w, err)
		return
	}

	writeSuccess(w, nil)
}
