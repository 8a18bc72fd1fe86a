package claims

import (
	"fmt"

	"claims-intake-platform/models"
)

// transitions lists the legal targets per status when strict checking is on
var transitions = map[models.ClaimStatus][]models.ClaimStatus{
	models.ClaimStatusPending: {
		models.ClaimStatusApproved,
		models.ClaimStatusDenied,
		models.ClaimStatusAppealed,
		models.ClaimStatusInfoRequested,
	},
	models.ClaimStatusAppealed: {
		models.ClaimStatusPending,
		models.ClaimStatusApproved,
		models.ClaimStatusDenied,
	},
	models.ClaimStatusDenied: {
		models.ClaimStatusAppealed,
	},
	models.ClaimStatusInfoRequested: {
		models.ClaimStatusPending,
	},
}

// ValidateTransition returns ErrInvalidStatus when to is unknown or cannot
// follow from. Setting the current status again is always allowed.
func ValidateTransition(from, to models.ClaimStatus) error {
	if !to.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, to)
	}
	if from == to {
		return nil
	}
	for _, allowed := range transitions[from] {
		if allowed == to {
			return nil
		}
	}
	return fmt.Errorf("%w: cannot move from %s to %s", ErrInvalidStatus, from, to)
}
