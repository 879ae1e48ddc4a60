// Package transcript saves and loads a conversation thread as JSON,
// grounded on the session save/load behavior of the original source's
// claudius-chat binary, re-expressed as a small standalone package since
// terminal/REPL chat itself is out of scope for this module.
package transcript

import (
	"encoding/json"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/rescrv/claudius/wire"
)

// Transcript is a saved conversation: an ID, a creation timestamp, the
// model used, and the full message history.
type Transcript struct {
	ID        string        `json:"id"`
	CreatedAt time.Time     `json:"created_at"`
	Model     string        `json:"model"`
	Messages  []wire.Message `json:"messages"`
}

// New creates a Transcript with a fresh random ID.
func New(model string, messages []wire.Message) Transcript {
	return Transcript{ID: uuid.NewString(), CreatedAt: time.Now().UTC(), Model: model, Messages: messages}
}

// Save writes t as indented JSON to path.
func Save(path string, t Transcript) error {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Load reads a Transcript previously written by Save.
func Load(path string) (Transcript, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Transcript{}, err
	}
	var t Transcript
	if err := json.Unmarshal(data, &t); err != nil {
		return Transcript{}, err
	}
	return t, nil
}
