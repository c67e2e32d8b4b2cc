package event

import (
	"time"

	"github.com/google/uuid"
)

const DefaultTopic = "default_actions"

// timestampLayout mirrors the text form consumers of the audit topic already parse.
const timestampLayout = "2006-01-02 15:04:05.000000"

type ActionType string

const (
	ActionCreateTariff           ActionType = "create_tariff"
	ActionCalculateInsuranceCost ActionType = "calculate_insurance_cost"
	ActionUpdateTariff           ActionType = "update_tariff"
	ActionDeleteTariff           ActionType = "delete_tariff"
)

// AuditMessage is the broker payload emitted for every tariff action.
type AuditMessage struct {
	UserID    *string    `json:"user_id"`
	Action    ActionType `json:"action"`
	Timestamp string     `json:"timestamp"`
}

// NewAuditMessage builds a message for action. subject may be uuid.Nil for
// actions that are not tied to a stored record.
func NewAuditMessage(action ActionType, subject uuid.UUID, at time.Time) AuditMessage {
	msg := AuditMessage{
		Action:    action,
		Timestamp: at.Format(timestampLayout),
	}
	if subject != uuid.Nil {
		id := subject.String()
		msg.UserID = &id
	}
	return msg
}
