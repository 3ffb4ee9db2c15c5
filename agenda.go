package auth

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AgendaStatus mirrors the attendance responses a recipient can give.
type AgendaStatus string

const (
	AgendaStatusPending   AgendaStatus = "PENDING"
	AgendaStatusConfirmed AgendaStatus = "CONFIRMED"
	AgendaStatusDeclined  AgendaStatus = "DECLINED"
)

// ParseAgendaStatus validates a raw response value.
func ParseAgendaStatus(raw string) (AgendaStatus, bool) {
	switch AgendaStatus(raw) {
	case AgendaStatusConfirmed, AgendaStatusDeclined:
		return AgendaStatus(raw), true
	}
	return "", false
}

// Agenda is a scheduled council session recipients are invited to.
type Agenda struct {
	bun.BaseModel `bun:"table:agendas,alias:agn"`

	ID              uuid.UUID    `bun:"id,pk,notnull" json:"id"`
	Title           string       `bun:"title,notnull" json:"title"`
	SessionAt       time.Time    `bun:"session_at,notnull" json:"session_at"`
	Status          AgendaStatus `bun:"status,notnull,default:'PENDING'" json:"status"`
	PresidingUserID *uuid.UUID   `bun:"presiding_user_id" json:"presiding_user_id,omitempty"`

	CreatedAt *time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt *time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`
}

// IsPresidedBy reports whether the given user chairs this agenda's session.
func (a *Agenda) IsPresidedBy(userID uuid.UUID) bool {
	return a.PresidingUserID != nil && *a.PresidingUserID == userID
}

// AgendaNotification is one recipient's invitation to an agenda session.
// Response and RespondedAt are overwritten on every confirmation visit,
// which makes re-confirming the same link idempotent.
type AgendaNotification struct {
	bun.BaseModel `bun:"table:agenda_notifications,alias:agnnot"`

	ID          uuid.UUID     `bun:"id,pk,notnull" json:"id"`
	AgendaID    uuid.UUID     `bun:"agenda_id,notnull" json:"agenda_id"`
	Agenda      *Agenda       `bun:"rel:belongs-to,join:agenda_id=id" json:"agenda,omitempty"`
	UserID      *uuid.UUID    `bun:"user_id" json:"user_id,omitempty"`
	Email       string        `bun:"email,notnull" json:"email"`
	Response    *AgendaStatus `bun:"response" json:"response,omitempty"`
	RespondedAt *time.Time    `bun:"responded_at" json:"responded_at,omitempty"`

	CreatedAt *time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt *time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`
}
