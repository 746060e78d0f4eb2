// Package domain holds the entities shared across use cases and adapters.
package domain

import (
	"time"
)

// UntaggedSentinel is the canonical tag of an image that carries no tags.
const UntaggedSentinel = "untagged"

// ScanStatusComplete is the terminal status of a finished image scan.
const ScanStatusComplete = "COMPLETE"

// Repository is an ECR repository discovered by listing an account.
type Repository struct {
	Name string
	URI  string
}

// Image is an immutable snapshot of one image's registry metadata.
// ScanStatus is empty when no scan was requested or completed; "field
// absent" is modeled explicitly instead of being treated as a lookup
// failure.
type Image struct {
	RepositoryName string
	Digest         string
	Tags           []string
	PushedAt       time.Time
	ScanStatus     string
}

// Tagged reports whether the image carries at least one tag.
func (i Image) Tagged() bool {
	return len(i.Tags) > 0
}

// Tag returns the canonical tag: the first entry of the tag list, or the
// untagged sentinel when the image has none.
func (i Image) Tag() string {
	if len(i.Tags) == 0 {
		return UntaggedSentinel
	}
	return i.Tags[0]
}

// Scanned reports whether the image has a completed scan.
func (i Image) Scanned() bool {
	return i.ScanStatus == ScanStatusComplete
}

// Reference returns the image's display identity: repo:tag, or the push
// timestamp in place of the tag when the image is untagged.
func (i Image) Reference() string {
	if i.Tagged() {
		return i.RepositoryName + ":" + i.Tags[0]
	}
	return i.RepositoryName + ":" + i.PushedAt.UTC().Format(time.RFC3339)
}

// AgeDays returns the image age in whole calendar days at the given
// evaluation time. The time-of-day component of both sides is discarded
// before subtracting.
func (i Image) AgeDays(at time.Time) int {
	pushed := truncateToDate(i.PushedAt)
	today := truncateToDate(at)
	return int(today.Sub(pushed).Hours() / 24)
}

func truncateToDate(t time.Time) time.Time {
	year, month, day := t.UTC().Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
