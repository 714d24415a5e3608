package funding

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const statusApproved = "approved"

// Acquirer represents a connector to an external card processor.
type Acquirer interface {
	AuthorizeCardIn(ctx context.Context, input CardInAuthorization) (AuthorizationDecision, error)
}

// AuthorizationDecision captures the simulated response from the acquirer.
type AuthorizationDecision struct {
	Reference string
	Status    string
}

// Approved reports whether the acquirer accepted the charge.
func (d AuthorizationDecision) Approved() bool {
	return d.Status == statusApproved
}

// CardInAuthorization encapsulates details needed for a card deposit authorization.
type CardInAuthorization struct {
	CardNumber string
	Expiry     string
	CVV        string
	Amount     decimal.Decimal
}

// StaticAcquirer simulates a successful acquirer integration.
type StaticAcquirer struct{}

// AuthorizeCardIn approves the deposit with a synthetic reference.
func (StaticAcquirer) AuthorizeCardIn(_ context.Context, _ CardInAuthorization) (AuthorizationDecision, error) {
	return AuthorizationDecision{Reference: uuid.NewString(), Status: statusApproved}, nil
}
