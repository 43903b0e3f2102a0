package workflow

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

func newRequestID(partNumber string) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("REQ-%s-%s", partNumber, suffix)
}

// Mission ids are a deterministic composite so a resubmitted request yields
// the same id.
func missionID(partNumber, requestID string) string {
	return fmt.Sprintf("MSN-%s-%s", partNumber, requestID)
}
