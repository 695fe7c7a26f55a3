package roster

import (
	"encoding/json"

	"pickup/internal/queue"
)

// Sync job kinds carried on the queue for the worker.
const (
	SyncStatus    = "status"
	SyncUpsert    = "upsert"
	SyncDelete    = "delete"
	SyncClassInfo = "classinfo"
)

// SyncJob asks the worker to push one roster change to the secondary stores.
// Upsert and status jobs re-read the student from Postgres, so only ids
// travel on the queue; delete jobs carry the Notion page id of the row that
// no longer exists.
type SyncJob struct {
	Kind         string `json:"kind"`
	StudentID    string `json:"studentId,omitempty"`
	NotionPageID string `json:"notionPageId,omitempty"`
	Attempts     int    `json:"attempts"`
}

// Message encodes the job as a queue message.
func (j SyncJob) Message() (queue.Message, error) {
	body, err := json.Marshal(j)
	if err != nil {
		return queue.Message{}, err
	}
	return queue.Message{Type: "sync", Body: body}, nil
}

// DecodeSyncJob parses a queue message body.
func DecodeSyncJob(body []byte) (SyncJob, error) {
	var j SyncJob
	err := json.Unmarshal(body, &j)
	return j, err
}
