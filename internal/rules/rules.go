package rules

import (
	"fmt"

	"github.com/shrimpsizemoose/kladdkaka/internal/models"
)

type Kind string

const (
	KindPost       Kind = "post"
	KindComment    Kind = "comment"
	KindMaterial   Kind = "material"
	KindAttendance Kind = "attendance"
	KindHomework   Kind = "homework"
	KindBonus      Kind = "bonus"
)

// Amounts holds the per-event credit values. Zero value is unusable,
// start from DefaultAmounts and override from config.
type Amounts struct {
	Post       int `toml:"post"`
	Comment    int `toml:"comment"`
	Material   int `toml:"material"`
	Attendance int `toml:"attendance"`
	MaxGrade   int `toml:"max_grade"`
}

func DefaultAmounts() Amounts {
	return Amounts{
		Post:       2,
		Comment:    1,
		Material:   10,
		Attendance: 5,
		MaxGrade:   20,
	}
}

// Event is one credit-worthy thing that happened in the platform.
// EntityID is the id of the post/comment/material/lecture/assignment the
// event is about; together with Kind it forms the dedup key that keeps
// automatic credit exactly-once per real-world event. Manual bonuses have
// no dedup key and may repeat.
type Event struct {
	Kind     Kind
	UserID   string
	IssuerID string
	EntityID string
	Context  string // course or section name, display only
	Title    string // lecture/assignment/material title, display only
	Grade    int    // homework only
	Amount   int    // bonus only
	Reason   string // bonus only
}

func (e Event) CreditAmount(a Amounts) int {
	switch e.Kind {
	case KindPost:
		return a.Post
	case KindComment:
		return a.Comment
	case KindMaterial:
		return a.Material
	case KindAttendance:
		return a.Attendance
	case KindHomework:
		return e.Grade
	case KindBonus:
		return e.Amount
	default:
		return 0
	}
}

// DedupKey is the structured idempotency key: kind plus entity id. It is
// deliberately separate from the human-readable reason, which carries
// titles and is allowed to collide. Empty for manual bonuses.
func (e Event) DedupKey() string {
	if e.Kind == KindBonus {
		return ""
	}
	return fmt.Sprintf("%s:%s", e.Kind, e.EntityID)
}

func (e Event) DisplayReason() string {
	switch e.Kind {
	case KindPost:
		return fmt.Sprintf("Post in %s", e.Context)
	case KindComment:
		return "Comment on a post"
	case KindMaterial:
		return fmt.Sprintf("Shared material in %s: %s", e.Context, e.Title)
	case KindAttendance:
		return fmt.Sprintf("Attendance for lecture: %q", e.Title)
	case KindHomework:
		return fmt.Sprintf("Homework grade for %q", e.Title)
	case KindBonus:
		return e.Reason
	default:
		return ""
	}
}

func (e Event) Validate(a Amounts) error {
	if e.UserID == "" {
		return fmt.Errorf("event has no user id")
	}
	if e.IssuerID == "" {
		return fmt.Errorf("event has no issuer id")
	}

	switch e.Kind {
	case KindPost, KindComment, KindMaterial, KindAttendance:
		if e.EntityID == "" {
			return fmt.Errorf("%s event has no entity id", e.Kind)
		}
	case KindHomework:
		if e.EntityID == "" {
			return fmt.Errorf("homework event has no assignment id")
		}
		if e.Grade < 0 || e.Grade > a.MaxGrade {
			return fmt.Errorf("grade %d is outside 0..%d", e.Grade, a.MaxGrade)
		}
	case KindBonus:
		if e.Amount <= 0 {
			return fmt.Errorf("bonus amount must be positive, got %d", e.Amount)
		}
		if e.Reason == "" {
			return fmt.Errorf("bonus event has no reason")
		}
	default:
		return fmt.Errorf("unknown event kind: %s", e.Kind)
	}

	return nil
}

// Transaction maps a validated event to the ledger row it should produce.
// A nil transaction with nil error means the event carries no credit
// (currently only a homework grade of zero).
func Transaction(e Event, a Amounts, now int64) (*models.CreditTransaction, error) {
	if err := e.Validate(a); err != nil {
		return nil, err
	}

	amount := e.CreditAmount(a)
	if amount == 0 {
		return nil, nil
	}

	tx := &models.CreditTransaction{
		UserID:    e.UserID,
		Amount:    amount,
		Reason:    e.DisplayReason(),
		IssuerID:  e.IssuerID,
		CreatedAt: now,
	}
	if key := e.DedupKey(); key != "" {
		tx.DedupKey = &key
	}

	return tx, nil
}
