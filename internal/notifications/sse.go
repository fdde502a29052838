package notifications

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/schoolgate/backend/internal/models"
)

// Stream message envelopes. The type field is the client's discriminator.
type connectedMessage struct {
	Type string `json:"type"`
}

type notificationMessage struct {
	Type  string             `json:"type"`
	Event models.AccessEvent `json:"event"`
}

type eventsMessage struct {
	Type   string               `json:"type"`
	Events []models.SchoolEvent `json:"events"`
}

// writeSSE frames one payload as a server-sent event and flushes it. A
// failed write means the client hung up.
func writeSSE(w http.ResponseWriter, flusher http.Flusher, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
