package automation

import (
	"context"
	"time"

	"whatsapp-group-automation/internal/models"
)

// Store is the persistence the engine needs. Calls are independent: no
// transaction spans more than one of them.
type Store interface {
	// ActiveRules returns the company's active rules inside their time
	// window at now, ordered by priority descending.
	ActiveRules(ctx context.Context, companyID string, now time.Time) ([]models.AutomationRule, error)

	// InsertCollected appends a datum. When DedupeKey is set and already
	// taken nothing is written and inserted is false.
	InsertCollected(ctx context.Context, datum *models.CollectedData) (inserted bool, err error)

	// FindCollected returns the first datum of participantJID for the rule, nil when none exists.
	FindCollected(ctx context.Context, ruleID, participantJID string) (*models.CollectedData, error)

	// ListCollected returns every datum of the rule in insertion order.
	ListCollected(ctx context.Context, ruleID string) ([]models.CollectedData, error)

	LogExecution(ctx context.Context, entry *models.AutomationLog) error
}
