package remote

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/nerrad567/tvbridge/internal/session"
)

// Frame types on the wire. Each frame is one JSON object per line.
const (
	frameReady         = "ready"
	frameError         = "error"
	frameUnpaired      = "unpaired"
	framePowerChanged  = "power_changed"
	frameVolumeChanged = "volume_changed"
	frameAppChanged    = "app_changed"

	frameKey       = "key"
	frameAppLaunch = "app_launch"
	frameText      = "text"

	framePairingRequest = "pairing_request"
	frameCodeDisplayed  = "code_displayed"
	frameSecret         = "secret"
	framePaired         = "paired"
	frameRejected       = "rejected"
)

// maxFrameSize bounds a single wire frame.
const maxFrameSize = 64 * 1024

// frame is the union of all wire messages; only the fields relevant to
// Type are set.
type frame struct {
	Type string `json:"type"`

	// Event fields (TV to bridge).
	Message string `json:"message,omitempty"`
	PowerOn bool   `json:"power_on,omitempty"`
	Volume  int    `json:"volume,omitempty"`
	Muted   bool   `json:"muted,omitempty"`
	AppID   string `json:"app_id,omitempty"`

	// Command fields (bridge to TV).
	KeyCode int    `json:"key_code,omitempty"`
	KeyName string `json:"key_name,omitempty"`
	AppURL  string `json:"app_url,omitempty"`
	Text    string `json:"text,omitempty"`

	// Pairing fields.
	ClientName  string `json:"client_name,omitempty"`
	Code        string `json:"code,omitempty"`
	Certificate []byte `json:"certificate,omitempty"`
}

// writeFrame encodes one frame followed by a newline.
func writeFrame(w io.Writer, f frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encoding frame: %w", err)
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("%w: %v", session.ErrTransport, err)
	}
	return nil
}

// frameReader decodes newline-delimited frames from a connection.
type frameReader struct {
	scanner *bufio.Scanner
}

func newFrameReader(r io.Reader) *frameReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 4096), maxFrameSize)
	return &frameReader{scanner: scanner}
}

// next returns the next frame, or a transport error when the stream ends.
func (fr *frameReader) next() (frame, error) {
	if !fr.scanner.Scan() {
		err := fr.scanner.Err()
		if err == nil {
			err = io.EOF
		}
		return frame{}, fmt.Errorf("%w: %v", session.ErrTransport, err)
	}
	var f frame
	if err := json.Unmarshal(fr.scanner.Bytes(), &f); err != nil {
		return frame{}, fmt.Errorf("%w: malformed frame: %v", session.ErrTransport, err)
	}
	return f, nil
}
