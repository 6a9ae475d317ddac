package model

// FailureKind is the stable, enumerated reason a job failed.
type FailureKind string

const (
	FailureAuth     FailureKind = "auth_required"
	FailureBlocked  FailureKind = "blocked"
	FailureNotFound FailureKind = "not_found"
	FailureNetwork  FailureKind = "network"
	FailureTooLong  FailureKind = "too_long"
	FailureUnknown  FailureKind = "unknown"
)

var failureMessages = map[FailureKind]string{
	FailureAuth:     "This video is private or requires sign-in.",
	FailureBlocked:  "The video platform blocked the download. Please try again later.",
	FailureNotFound: "Video not found. It may have been removed or the link is incorrect.",
	FailureNetwork:  "A network error occurred while processing the video. Please try again.",
	FailureTooLong:  "The video is longer than the supported maximum.",
	FailureUnknown:  "An unexpected error occurred while processing the video.",
}

// FailureMessage returns the user-presentable text for kind. Unknown kinds
// collapse to the generic message.
func FailureMessage(kind FailureKind) string {
	if msg, ok := failureMessages[kind]; ok {
		return msg
	}
	return failureMessages[FailureUnknown]
}

// Known reports whether kind is one of the enumerated values.
func (k FailureKind) Known() bool {
	_, ok := failureMessages[k]
	return ok
}
