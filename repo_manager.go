package auth

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	Users() Users
	Roles() Roles
	Agendas() Agendas
	AgendaNotifications() AgendaNotifications
}

type mngr struct {
	db                  *bun.DB
	users               Users
	roles               Roles
	agendas             Agendas
	agendaNotifications AgendaNotifications
}

func NewRepositoryManager(db *bun.DB) RepositoryManager {
	db.RegisterModel((*UserRoleLink)(nil))

	return &mngr{
		db:                  db,
		users:               NewUsersRepository(db),
		roles:               NewRolesRepository(db),
		agendas:             NewAgendasRepository(db),
		agendaNotifications: NewAgendaNotificationsRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.users == nil {
		return errors.New("repository users should be initialized")
	}

	if m.roles == nil {
		return errors.New("repository roles should be initialized")
	}

	if m.agendas == nil {
		return errors.New("repository agendas should be initialized")
	}

	if m.agendaNotifications == nil {
		return errors.New("repository agendaNotifications should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Users() Users {
	return m.users
}

func (m mngr) Roles() Roles {
	return m.roles
}

func (m mngr) Agendas() Agendas {
	return m.agendas
}

func (m mngr) AgendaNotifications() AgendaNotifications {
	return m.agendaNotifications
}
