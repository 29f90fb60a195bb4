package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/tvbridge/internal/device"
	"github.com/nerrad567/tvbridge/internal/session"
)

// connectRequest establishes a session using supplied or stored credentials.
type connectRequest struct {
	DeviceID    string `json:"deviceId"`
	Host        string `json:"host"`
	Certificate []byte `json:"certificate,omitempty"`
	PrivateKey  []byte `json:"privateKey,omitempty"`
}

// disconnectRequest releases a device's session.
type disconnectRequest struct {
	DeviceID string `json:"deviceId"`
}

// keyRequest presses a single remote key.
type keyRequest struct {
	DeviceID string `json:"deviceId"`
	KeyCode  int    `json:"keyCode"`
	KeyName  string `json:"keyName,omitempty"`
}

// appLaunchRequest opens an app link on the device.
type appLaunchRequest struct {
	DeviceID string `json:"deviceId"`
	AppURL   string `json:"appUrl"`
}

// textRequest types text into the device's focused input.
type textRequest struct {
	DeviceID string `json:"deviceId"`
	Text     string `json:"text"`
}

// handleConnect stores any supplied credential material, then establishes
// (or reuses) the device session. Connecting an already-connected device
// is a no-op reporting success.
func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.DeviceID == "" {
		writeInternalError(w, "deviceId is required")
		return
	}

	if len(req.Certificate) > 0 && len(req.PrivateKey) > 0 {
		creds := &device.Credentials{
			DeviceID: req.DeviceID,
			Host:     req.Host,
			Material: session.Credentials{
				Certificate: req.Certificate,
				PrivateKey:  req.PrivateKey,
			},
			PairedAt: time.Now().UTC(),
		}
		// Keep the original pairing timestamp when re-supplying material.
		if existing, err := s.creds.Get(r.Context(), req.DeviceID); err == nil {
			creds.PairedAt = existing.PairedAt
			if creds.Host == "" {
				creds.Host = existing.Host
			}
			creds.Name = existing.Name
		}
		if err := s.creds.Save(r.Context(), creds); err != nil {
			writeOperationError(w, err)
			return
		}
	}

	if err := s.manager.Connect(r.Context(), req.DeviceID); err != nil {
		writeOperationError(w, err)
		return
	}

	writeSuccess(w, nil)
}

// handleDisconnect releases the session and marks the device disconnected.
func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	var req disconnectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.DeviceID == "" {
		writeInternalError(w, "deviceId is required")
		return
	}

	if err := s.manager.Disconnect(req.DeviceID); err != nil {
		writeOperationError(w, err)
		return
	}

	writeSuccess(w, nil)
}

// handleStatus returns the device's liveness and last-known state.
// Connected reflects the activity window, not raw socket state.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceId")

	snap, err := s.manager.Status(deviceID)
	if err != nil {
		writeOperationError(w, err)
		return
	}

	state := map[string]any{
		"powerState": snap.PowerState,
		"volume":     snap.Volume,
		"muted":      snap.Muted,
		"currentApp": snap.CurrentApp,
	}
	if snap.LastActivity != nil {
		state["lastActivity"] = snap.LastActivity.UTC().Format(time.RFC3339)
	}

	writeSuccess(w, map[string]any{
		"connected": snap.Connected,
		"state":     state,
	})
}

// handleListDevices returns a snapshot for every known device.
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	writeSuccess(w, map[string]any{
		"devices": s.manager.Snapshots(),
	})
}

// handleKey presses a single key on the device.
func (s *Server) handleKey(w http.ResponseWriter, r *http.Request) {
	var req keyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.DeviceID == "" {
		writeInternalError(w, "deviceId is required")
		return
	}

	if err := s.manager.SendKey(r.Context(), req.DeviceID, req.KeyCode, req.KeyName); err != nil {
		writeOperationError(w, err)
		return
	}

	writeSuccess(w, nil)
}

// handleAppLaunch opens an app link on the device.
func (s *Server) handleAppLaunch(w http.ResponseWriter, r *http.Request) {
	var req appLaunchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.DeviceID == "" || req.AppURL == "" {
		writeInternalError(w, "deviceId and appUrl are required")
		return
	}

	if err := s.manager.LaunchApp(r.Context(), req.DeviceID, req.AppURL); err != nil {
		writeOperationError(w, err)
		return
	}

	writeSuccess(w, nil)
}

// handleText types text into the device's focused input field.
func (s *Server) handleText(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.DeviceID == "" {
		writeInternalError(w, "deviceId is required")
		return
	}

	if err := s.manager.SendText(r.Context(), req.DeviceID, req.Text); err != nil {
		writeOperationError(w, err)
		return
	}

	writeSuccess(w, nil)
}
