// Package docs holds the user documentation of btx, organised in topics.
package docs

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"strings"
)

//go:embed *.md
var docs embed.FS

// ErrUnknownTopic is returned for topics without a documentation file.
var ErrUnknownTopic = errors.New("unknown topic")

// Topic returns the markdown content of a topic.
func Topic(topic string) (string, error) {
	content, err := docs.ReadFile(topic + ".md")
	if errors.Is(err, fs.ErrNotExist) {
		all, _ := All()
		return "", fmt.Errorf("%w %q, available topics are %q", ErrUnknownTopic, topic, all)
	}
	if err != nil {
		return "", err
	}
	return string(content), nil
}

// Topics concatenates several topics. "*" stands for every topic.
func Topics(topics ...string) (string, error) {
	var b strings.Builder
	for _, topic := range topics {
		names := []string{topic}
		if topic == "*" {
			var err error
			if names, err = All(); err != nil {
				return "", err
			}
		}
		for _, name := range names {
			content, err := Topic(name)
			if err != nil {
				return "", err
			}
			b.WriteString(content)
			b.WriteString("\n")
		}
	}
	return b.String(), nil
}

// All returns the sorted list of topics, the readme excluded.
func All() ([]string, error) {
	entries, err := fs.ReadDir(docs, ".")
	if err != nil {
		return nil, err
	}
	var topics []string
	for _, e := range entries {
		name, ok := strings.CutSuffix(e.Name(), ".md")
		if e.IsDir() || !ok || name == "readme" {
			continue
		}
		topics = append(topics, name)
	}
	slices.Sort(topics)
	return topics, nil
}
