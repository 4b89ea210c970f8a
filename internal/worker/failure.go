package worker

import (
	"context"
	"log/slog"

	"secondbrain/features/job"
)

func recordFailure(ctx context.Context, rec FailureRecorder, topic, url string, body []byte, cause error) {
	slog.ErrorContext(ctx, "ingestion step failed", "topic", topic, "url", url, "error", cause)
	if rec == nil {
		return
	}
	j := &job.Job{Topic: topic, DocumentURL: url, Payload: body, Error: cause.Error()}
	if err := rec.Save(ctx, j); err != nil {
		slog.ErrorContext(ctx, "failed to record failed job", "topic", topic, "url", url, "error", err)
	}
}
