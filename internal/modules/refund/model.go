// README: Refund request record and its own small status set.
package refund

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"angierens/internal/types"
)

// Status tracks the refund request itself; the order's lifecycle status moves
// separately through Refunding and into Refund or Rejected.
type Status string

const (
	StatusPending  Status = "Pending"
	StatusApproved Status = "Approved"
	StatusRejected Status = "Rejected"
)

type Refund struct {
	ID            types.ID
	OrderID       types.ID
	Reason        string
	Destination   string
	Status        Status
	Fee           decimal.Decimal
	Total         decimal.Decimal
	StaffResponse string
	ProofRef      string
	RequestedAt   time.Time
	ResolvedAt    *time.Time
}

// MaskDestination hides the middle of a payout account number, keeping the
// country prefix and the last two digits so the customer can recognize it.
func MaskDestination(s string) string {
	runes := []rune(strings.TrimSpace(s))
	if len(runes) <= 6 {
		return strings.Repeat("X", len(runes))
	}
	masked := make([]rune, len(runes))
	copy(masked, runes)
	for i := 4; i < len(runes)-2; i++ {
		if masked[i] != ' ' {
			masked[i] = 'X'
		}
	}
	return string(masked)
}
