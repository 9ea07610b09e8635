package domain

import (
	"fmt"
	"time"
)

// SourceType identifies a remote service an activity came from.
type SourceType string

const (
	SourceGitLab SourceType = "gitlab"
	SourceGitHub SourceType = "github"
)

// ActivityKind identifies what sort of thing the author did.
type ActivityKind string

const (
	KindCommit       ActivityKind = "commit"
	KindMergeRequest ActivityKind = "merge_request"
	KindIssue        ActivityKind = "issue"
	KindComment      ActivityKind = "comment"
)

// Activity is the normalized record every source adapter produces.
// Instances are immutable once created.
type Activity struct {
	ID          string         `json:"id"`
	Source      SourceType     `json:"source"`
	Kind        ActivityKind   `json:"kind"`
	Timestamp   time.Time      `json:"timestamp"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Author      string         `json:"author"`
	AuthorEmail string         `json:"author_email,omitempty"`
	URL         string         `json:"url,omitempty"`
	Project     string         `json:"project"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// ActivityID builds a globally unique activity ID from the source, the
// entity kind and the source-native identifier.
func ActivityID(source SourceType, kind ActivityKind, nativeID string) string {
	return fmt.Sprintf("%s:%s:%s", source, kind, nativeID)
}

// AuthorID returns the source-native author ID attached by the adapter,
// if any. Adapters stash it under the "author_id" metadata key.
func (a Activity) AuthorID() string {
	if a.Metadata == nil {
		return ""
	}
	if id, ok := a.Metadata["author_id"].(string); ok {
		return id
	}
	return ""
}

// ProjectRef identifies a project on a remote service. Meta carries
// source-specific fields the core never interprets.
type ProjectRef struct {
	ID   string
	Name string
	Path string
	Meta map[string]string
}
