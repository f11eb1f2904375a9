package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"
)

// ProgressStore owns the persisted BatchProgress record for one
// content type.
type ProgressStore struct {
	path string
}

func NewProgressStore(path string) *ProgressStore {
	return &ProgressStore{path: path}
}

// Initialize builds a fresh record with every topic pending and zero
// attempts.
func (s *ProgressStore) Initialize(contentType, topicsFile string, topics []string) *BatchProgress {
	now := time.Now()
	statuses := make(map[string]*TopicStatus, len(topics))
	for _, topic := range topics {
		statuses[topic] = &TopicStatus{Topic: topic, Status: TopicPending}
	}
	return &BatchProgress{
		ContentType:     contentType,
		TopicsFile:      topicsFile,
		TotalTopics:     len(topics),
		CompletedTopics: []string{},
		FailedTopics:    []string{},
		StartTime:       now,
		LastUpdateTime:  now,
		TopicStatuses:   statuses,
	}
}

// Load deserializes persisted progress and reconciles it against the
// current topics list. A missing or unreadable file is a recoverable
// condition: it falls back to a fresh record and logs the degradation.
func (s *ProgressStore) Load(contentType, topicsFile string, topics []string) *BatchProgress {
	data, err := os.ReadFile(s.path)
	if err != nil {
		log.Printf("No resumable progress at %s, starting fresh: %v", s.path, err)
		return s.Initialize(contentType, topicsFile, topics)
	}

	var progress BatchProgress
	if err := json.Unmarshal(data, &progress); err != nil {
		log.Printf("Progress file %s is unreadable, starting fresh: %v", s.path, err)
		return s.Initialize(contentType, topicsFile, topics)
	}

	if progress.TopicStatuses == nil {
		progress.TopicStatuses = make(map[string]*TopicStatus, len(topics))
	}
	// Topics added to the file since the last session enter as pending.
	for _, topic := range topics {
		if _, ok := progress.TopicStatuses[topic]; !ok {
			progress.TopicStatuses[topic] = &TopicStatus{Topic: topic, Status: TopicPending}
		}
	}
	progress.TotalTopics = len(topics)
	progress.TopicsFile = topicsFile

	log.Printf("Loaded progress: %d/%d completed", len(progress.CompletedTopics), progress.TotalTopics)
	return &progress
}

// Save serializes the full record atomically: write to a temp file,
// then rename over the previous version. A crash mid-save never leaves
// a truncated progress file behind.
func (s *ProgressStore) Save(progress *BatchProgress) error {
	progress.LastUpdateTime = time.Now()

	data, err := json.MarshalIndent(progress, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling progress: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing progress temp file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replacing progress file: %w", err)
	}
	return nil
}

// PendingTopics returns, in topics-file order, every topic that still
// needs a pipeline run this session: topics not yet completed, plus
// failed topics that have retry budget left.
func (s *ProgressStore) PendingTopics(progress *BatchProgress, allTopics []string, maxRetries int) []string {
	completed := make(map[string]bool, len(progress.CompletedTopics))
	for _, topic := range progress.CompletedTopics {
		completed[topic] = true
	}

	var pending []string
	for _, topic := range allTopics {
		if completed[topic] {
			continue
		}
		if status, ok := progress.TopicStatuses[topic]; ok && status.Status == TopicFailed {
			if status.Attempts < maxRetries {
				pending = append(pending, topic)
			}
			continue
		}
		pending = append(pending, topic)
	}
	return pending
}
