package cache

import (
	"fmt"

	"github.com/google/uuid"
)

func SessionKey(conversationID string) string {
	return fmt.Sprintf("session:%s", conversationID)
}

// ArtifactKey scopes an intermediate stage output to its run and stage number.
func ArtifactKey(conversationID string, stage int) string {
	return fmt.Sprintf("result:%s:step%d", conversationID, stage)
}

// ResultKey builds the lookup key for a raw artifact identifier as it appears
// in a fetch_result URL (e.g. "<conversation>:step1").
func ResultKey(resultID string) string {
	return fmt.Sprintf("result:%s", resultID)
}

func RunStatusKey(runID uuid.UUID) string {
	return fmt.Sprintf("run:%s", runID)
}

func RateLimitKey(scope string, userID int64) string {
	return fmt.Sprintf("ratelimit:%s:%d", scope, userID)
}
