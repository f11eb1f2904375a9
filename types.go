package main

import "time"

// TopicState is the lifecycle state of a single topic.
type TopicState string

const (
	TopicPending    TopicState = "pending"
	TopicProcessing TopicState = "processing"
	TopicCompleted  TopicState = "completed"
	TopicFailed     TopicState = "failed"
)

// TopicStatus tracks the processing state of one topic. Attempts only
// ever grows; a retry never resets it.
type TopicStatus struct {
	Topic        string     `json:"topic"`
	Status       TopicState `json:"status"`
	StartTime    *time.Time `json:"start_time"`
	EndTime      *time.Time `json:"end_time"`
	Attempts     int        `json:"attempts"`
	ErrorMessage string     `json:"error_message,omitempty"`
	PublishedID  int        `json:"published_id,omitempty"`
	PublishedURL string     `json:"published_url,omitempty"`
}

// BatchProgress is the persisted state of one batch session, keyed by
// content type. CompletedTopics and FailedTopics are insertion-ordered
// but semantically sets; they never overlap.
type BatchProgress struct {
	ContentType     string                  `json:"content_type"`
	TopicsFile      string                  `json:"topics_file"`
	TotalTopics     int                     `json:"total_topics"`
	CompletedTopics []string                `json:"completed_topics"`
	FailedTopics    []string                `json:"failed_topics"`
	CurrentTopic    *string                 `json:"current_topic"`
	StartTime       time.Time               `json:"start_time"`
	LastUpdateTime  time.Time               `json:"last_update_time"`
	TopicStatuses   map[string]*TopicStatus `json:"topic_statuses"`
}

// VerificationStatus is the outcome of a publication check.
type VerificationStatus string

const (
	VerificationPublished VerificationStatus = "published"
	VerificationNotFound  VerificationStatus = "not_found"
	VerificationSkipped   VerificationStatus = "skipped"
)

// VerificationResult carries the matched post when an article was found.
type VerificationResult struct {
	Status  VerificationStatus
	PostID  int
	PostURL string
}
