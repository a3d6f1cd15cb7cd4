package port

import "context"

// FailureNotifier tells the user their extraction job permanently failed.
type FailureNotifier interface {
	NotifyFailure(ctx context.Context, userEmail string, jobID string, mediaKey string, errorMsg string) error
}
