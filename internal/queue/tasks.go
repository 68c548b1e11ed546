package queue

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// TaskIndexDocument indexes a PDF from the raw store into the vector index
const TaskIndexDocument = "index-document"

// IndexJob is the payload of an index-document task
type IndexJob struct {
	JobID    string `json:"job_id"`
	Filename string `json:"filename"`
}

// NewIndexTask builds the task for job
func NewIndexTask(job IndexJob) (*asynq.Task, error) {
	if job.JobID == "" || job.Filename == "" {
		return nil, fmt.Errorf("job ID and filename are required")
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job: %w", err)
	}
	return asynq.NewTask(TaskIndexDocument, payload), nil
}
