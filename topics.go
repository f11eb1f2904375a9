package main

import (
	"bufio"
	"os"
	"strings"
)

// loadTopics reads the topics file: one topic per line, in file order.
// Blank lines and lines starting with # are skipped.
func loadTopics(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ConfigurationError{Reason: "topics file not found: " + path, Err: err}
	}
	defer f.Close()

	var topics []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		topics = append(topics, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, &ConfigurationError{Reason: "reading topics file " + path, Err: err}
	}
	return topics, nil
}
