package generation

import "strings"

// Kind selects the media type of a generation request. It is declared by
// the caller up front and never inferred from a vendor response shape.
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
)

// Status is the observed lifecycle of a vendor task. The application never
// writes task state; it only reads it.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// NormalizeStatus folds vendor aliases into the canonical set. Unknown
// values are returned lowercased but otherwise untouched so callers can
// log them verbatim.
func NormalizeStatus(raw string) Status {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if s == "success" || s == "succeeded" {
		return StatusCompleted
	}
	return s
}

// Terminal reports whether no further transition can occur.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Known reports whether the status belongs to the documented set.
func (s Status) Known() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Result is the typed outcome of a completed task: a sequence of image
// URLs or a single video URL, selected by Kind.
type Result struct {
	Kind     Kind
	Images   []string
	VideoURL string
}

// NewResult builds a Result from persisted URLs according to the declared
// media kind. For videos only the first URL is meaningful.
func NewResult(kind Kind, urls []string) Result {
	res := Result{Kind: kind}
	switch kind {
	case KindVideo:
		if len(urls) > 0 {
			res.VideoURL = urls[0]
		}
	default:
		res.Images = urls
	}
	return res
}

// FailureMessage picks the best available error text for a failed task:
// the vendor error, then the vendor message, then the fallback.
func FailureMessage(vendorError, vendorMessage, fallback string) string {
	if msg := strings.TrimSpace(vendorError); msg != "" {
		return msg
	}
	if msg := strings.TrimSpace(vendorMessage); msg != "" {
		return msg
	}
	return fallback
}
