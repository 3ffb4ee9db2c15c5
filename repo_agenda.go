package auth

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Agendas interface {
	repository.Repository[*Agenda]

	// GetAgendaTx is named to avoid clashing with the embedded
	// repository's string-keyed GetByIDTx.
	GetAgendaTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Agenda, error)
	UpdateStatus(ctx context.Context, agenda *Agenda) error
	UpdateStatusTx(ctx context.Context, tx bun.IDB, agenda *Agenda) error
}

type AgendaNotifications interface {
	repository.Repository[*AgendaNotification]

	GetNotificationTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*AgendaNotification, error)
	RecordResponse(ctx context.Context, notification *AgendaNotification) error
	RecordResponseTx(ctx context.Context, tx bun.IDB, notification *AgendaNotification) error
}

type agendas struct {
	repository.Repository[*Agenda]
	db *bun.DB
}

var _ Agendas = (*agendas)(nil)

func NewAgendasRepository(db *bun.DB) Agendas {
	repo := repository.NewRepository[*Agenda](db, repository.ModelHandlers[*Agenda]{
		NewRecord: func() *Agenda { return &Agenda{} },
		GetID: func(a *Agenda) uuid.UUID {
			if a == nil {
				return uuid.Nil
			}
			return a.ID
		},
		SetID: func(a *Agenda, id uuid.UUID) {
			if a != nil {
				a.ID = id
			}
		},
	})

	return &agendas{
		Repository: repo,
		db:         db,
	}
}

func (a *agendas) GetAgendaTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Agenda, error) {
	record := &Agenda{}

	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"id": id.String(),
				})
		}
		return nil, err
	}

	return record, nil
}

func (a *agendas) UpdateStatus(ctx context.Context, agenda *Agenda) error {
	return a.UpdateStatusTx(ctx, a.db, agenda)
}

func (a *agendas) UpdateStatusTx(ctx context.Context, tx bun.IDB, agenda *Agenda) error {
	_, err := tx.NewUpdate().
		Model(agenda).
		Column("status", "updated_at").
		WherePK().
		Exec(ctx)

	return err
}

type agendaNotifications struct {
	repository.Repository[*AgendaNotification]
	db *bun.DB
}

var _ AgendaNotifications = (*agendaNotifications)(nil)

func NewAgendaNotificationsRepository(db *bun.DB) AgendaNotifications {
	repo := repository.NewRepository[*AgendaNotification](db, repository.ModelHandlers[*AgendaNotification]{
		NewRecord: func() *AgendaNotification { return &AgendaNotification{} },
		GetID: func(n *AgendaNotification) uuid.UUID {
			if n == nil {
				return uuid.Nil
			}
			return n.ID
		},
		SetID: func(n *AgendaNotification, id uuid.UUID) {
			if n != nil {
				n.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &agendaNotifications{
		Repository: repo,
		db:         db,
	}
}

func (a *agendaNotifications) GetNotificationTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*AgendaNotification, error) {
	record := &AgendaNotification{}

	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"id": id.String(),
				})
		}
		return nil, err
	}

	return record, nil
}

func (a *agendaNotifications) RecordResponse(ctx context.Context, notification *AgendaNotification) error {
	return a.RecordResponseTx(ctx, a.db, notification)
}

func (a *agendaNotifications) RecordResponseTx(ctx context.Context, tx bun.IDB, notification *AgendaNotification) error {
	_, err := tx.NewUpdate().
		Model(notification).
		Column("response", "responded_at", "updated_at").
		WherePK().
		Exec(ctx)

	return err
}
