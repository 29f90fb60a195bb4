package api

import (
	"net/http"
)

// pairStartRequest initiates pairing with a TV.
type pairStartRequest struct {
	DeviceID   string `json:"deviceId"`
	Host       string `json:"host"`
	DeviceName string `json:"deviceName"`
}

// pairCompleteRequest finishes a pairing exchange with the on-screen code.
type pairCompleteRequest struct {
	DeviceID string `json:"deviceId"`
	Code     string `json:"code"`
}

// unpairRequest removes a device and its stored credentials.
type unpairRequest struct {
	DeviceID string `json:"deviceId"`
}

// handlePairStart begins a pairing exchange. The TV shows a one-time code;
// codeDisplayed reports whether the TV confirmed the prompt in time.
func (s *Server) handlePairStart(w http.ResponseWriter, r *http.Request) {
	var req pairStartRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	displayed, err := s.pairing.Start(r.Context(), req.DeviceID, req.Host, req.DeviceName)
	if err != nil {
		writeOperationError(w, err)
		return
	}

	writeSuccess(w, map[string]any{
		"codeDisplayed": displayed,
	})
}

// handlePairComplete submits the on-screen code and returns the produced
// credential material. Byte fields are base64 in transit.
func (s *Server) handlePairComplete(w http.ResponseWriter, r *http.Request) {
	var req pairCompleteRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	material, err := s.pairing.Complete(r.Context(), req.DeviceID, req.Code)
	if err != nil {
		writeOperationError(w, err)
		return
	}

	writeSuccess(w, map[string]any{
		"certificate": material.Certificate,
		"privateKey":  material.PrivateKey,
	})
}

// handleUnpair tears down any session and removes the device record and
// persisted credentials.
func (s *Server) handleUnpair(w http.ResponseWriter, r *http.Request) {
	var req unpairRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.DeviceID == "" {
		writeInternalError(w, "deviceId is required")
		return
	}

	if err := s.manager.Unpair(r.Context(), req.DeviceID); err != nil {
		writeOperationError(w, err)
		return
	}

	writeSuccess(w, nil)
}
