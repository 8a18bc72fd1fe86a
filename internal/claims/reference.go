package claims

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewReference returns a claim reference of the form MH-<year>-<4 hex chars>
func NewReference(now time.Time) string {
	return fmt.Sprintf("MH-%d-%s", now.Year(), uuid.NewString()[:4])
}
