package shared

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Reference prefixes stamped on Movement Ledger entries.
const (
	ReceiptPrefix      = "RC"
	DirectIntakePrefix = "RD"
)

// NewBatchReference returns a token unique per invocation, e.g. "RD-1f0c2a9b7d3e".
func NewBatchReference(prefix string) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("%s-%s", prefix, id[:12])
}
