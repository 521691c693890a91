package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Event types appended by the engine.
const (
	ObligationCreated    = "obligation.created"
	ObligationPaid       = "obligation.paid"
	ObligationRetired    = "obligation.retired"
	ObligationSkipped    = "obligation.skipped"
	ObligationDeleted    = "obligation.deleted"
	ObligationNormalized = "obligation.normalized"
	ReminderMarked       = "reminder.marked"
	ExpenseAdded         = "expense.added"
	ExpenseDeleted       = "expense.deleted"
	IncomeAdded          = "income.added"
	IncomeDeleted        = "income.deleted"
)

type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

type EventPayload map[string]any

// Append writes an audit row inside tx. ownerID 0 means a system-wide event.
func (w Writer) Append(ctx context.Context, tx *sql.Tx, evtType string, ownerID int64, entityKind, entityID, actor string, payload EventPayload) error {
	if w.Now == nil {
		w.Now = time.Now
	}
	ts := w.Now().UTC().Format(time.RFC3339)
	if payload == nil {
		payload = EventPayload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	if actor == "" {
		actor = "system"
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO events(ts,type,owner_id,entity_kind,entity_id,actor,payload_json) VALUES (?,?,?,?,?,?,?)`,
		ts, evtType, nullableOwner(ownerID), entityKind, nullable(entityID), actor, string(data))
	if err != nil {
		return fmt.Errorf("append %s event: %w", evtType, err)
	}
	return nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableOwner(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}
