package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/madaldho/designflow-app-sub000/internal/domain"
	"github.com/madaldho/designflow-app-sub000/internal/repo"
	"github.com/madaldho/designflow-app-sub000/internal/roles"
)

// UserCreateOptions are parameters for registering a user.
type UserCreateOptions struct {
	ActorID       string
	Name          string
	Email         string
	Role          domain.Role
	InstitutionID string
}

func (e Engine) CreateUser(ctx context.Context, opts UserCreateOptions) (domain.User, error) {
	actor, err := e.actor(ctx, opts.ActorID)
	if err != nil {
		return domain.User{}, err
	}
	if !roles.Can(actor.Role, roles.ManageUsers) {
		return domain.User{}, PermissionError{Action: roles.ManageUsers, Role: actor.Role}
	}
	if opts.Name == "" || opts.Email == "" {
		return domain.User{}, errors.New("name and email are required")
	}
	if !domain.ValidRole(opts.Role) {
		return domain.User{}, fmt.Errorf("unknown role %q", opts.Role)
	}
	if _, err := e.Repo.GetUserByEmail(ctx, opts.Email); err == nil {
		return domain.User{}, fmt.Errorf("email %s already registered", opts.Email)
	} else if !errors.Is(err, repo.ErrNotFound) {
		return domain.User{}, err
	}
	if opts.InstitutionID != "" {
		if _, err := e.Repo.GetInstitution(ctx, opts.InstitutionID); err != nil {
			return domain.User{}, fmt.Errorf("institution %s: %w", opts.InstitutionID, err)
		}
	}
	u := domain.User{
		ID:            uuid.New().String(),
		Name:          opts.Name,
		Email:         opts.Email,
		Role:          opts.Role,
		InstitutionID: opts.InstitutionID,
		Active:        true,
		CreatedAt:     e.nowStr(),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.User{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertUserTx(ctx, tx, u); err != nil {
		return domain.User{}, err
	}
	if err := e.record(ctx, tx, "user_created", fmt.Sprintf("user %s registered as %s", u.Email, u.Role), actor.ID, ""); err != nil {
		return domain.User{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

func (e Engine) ChangeUserRole(ctx context.Context, actorID, userID string, role domain.Role) (domain.User, error) {
	actor, err := e.actor(ctx, actorID)
	if err != nil {
		return domain.User{}, err
	}
	if !roles.Can(actor.Role, roles.ManageUsers) {
		return domain.User{}, PermissionError{Action: roles.ManageUsers, Role: actor.Role}
	}
	if !domain.ValidRole(role) {
		return domain.User{}, fmt.Errorf("unknown role %q", role)
	}
	u, err := e.Repo.GetUser(ctx, userID)
	if err != nil {
		return domain.User{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.User{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateUserRoleTx(ctx, tx, userID, role); err != nil {
		return domain.User{}, err
	}
	if err := e.record(ctx, tx, "user_role_changed", fmt.Sprintf("user %s role changed %s -> %s", u.Email, u.Role, role), actor.ID, ""); err != nil {
		return domain.User{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.User{}, err
	}
	u.Role = role
	return u, nil
}

func (e Engine) SetUserActive(ctx context.Context, actorID, userID string, active bool) error {
	actor, err := e.actor(ctx, actorID)
	if err != nil {
		return err
	}
	if !roles.Can(actor.Role, roles.ManageUsers) {
		return PermissionError{Action: roles.ManageUsers, Role: actor.Role}
	}
	u, err := e.Repo.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.SetUserActiveTx(ctx, tx, userID, active); err != nil {
		return err
	}
	state := "disabled"
	if active {
		state = "enabled"
	}
	if err := e.record(ctx, tx, "user_state_changed", fmt.Sprintf("user %s %s", u.Email, state), actor.ID, ""); err != nil {
		return err
	}
	return tx.Commit()
}

// InstitutionCreateOptions are parameters for registering an institution.
type InstitutionCreateOptions struct {
	ActorID string
	ID      string
	Name    string
	Phone   string
	Address string
}

func (e Engine) CreateInstitution(ctx context.Context, opts InstitutionCreateOptions) (domain.Institution, error) {
	actor, err := e.actor(ctx, opts.ActorID)
	if err != nil {
		return domain.Institution{}, err
	}
	if !roles.Can(actor.Role, roles.ManageInstitutions) {
		return domain.Institution{}, PermissionError{Action: roles.ManageInstitutions, Role: actor.Role}
	}
	if opts.Name == "" {
		return domain.Institution{}, errors.New("name is required")
	}
	inst := domain.Institution{
		ID:        opts.ID,
		Name:      opts.Name,
		Phone:     opts.Phone,
		Address:   opts.Address,
		CreatedAt: e.nowStr(),
	}
	if inst.ID == "" {
		inst.ID = uuid.New().String()
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Institution{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertInstitutionTx(ctx, tx, inst); err != nil {
		return domain.Institution{}, err
	}
	if err := e.record(ctx, tx, "institution_created", fmt.Sprintf("institution %q registered", inst.Name), actor.ID, ""); err != nil {
		return domain.Institution{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Institution{}, err
	}
	return inst, nil
}

// bootstrapTx is reused by Bootstrap for the admin seed.
func (e Engine) bootstrapTx(ctx context.Context, tx *sql.Tx, u domain.User) error {
	return e.Repo.InsertUserTx(ctx, tx, u)
}

// Bootstrap seeds the configured admin account on first start. It is a no-op
// when the email is already registered.
func (e Engine) Bootstrap(ctx context.Context, name, email string) (domain.User, error) {
	if email == "" {
		return domain.User{}, errors.New("bootstrap admin email is required")
	}
	if u, err := e.Repo.GetUserByEmail(ctx, email); err == nil {
		return u, nil
	} else if !errors.Is(err, repo.ErrNotFound) {
		return domain.User{}, err
	}
	if name == "" {
		name = "Administrator"
	}
	u := domain.User{
		ID:        uuid.New().String(),
		Name:      name,
		Email:     email,
		Role:      domain.RoleAdmin,
		Active:    true,
		CreatedAt: e.nowStr(),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.User{}, err
	}
	defer tx.Rollback()
	if err := e.bootstrapTx(ctx, tx, u); err != nil {
		return domain.User{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.User{}, err
	}
	return u, nil
}
