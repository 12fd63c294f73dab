package service

import (
	"context"
	"fmt"
	"strings"

	"vpn-console/devserver/internal/model"
	"vpn-console/devserver/internal/repository"
)

const minPasswordLen = 8

func validRole(role string) bool {
	return role == model.RoleAdmin || role == model.RoleUser
}

func CreateUser(ctx context.Context, repo repository.Repository, actor, username, password, role string) (model.User, error) {
	username = strings.TrimSpace(username)
	if role == "" {
		role = model.RoleUser
	}
	switch {
	case username == "":
		return model.User{}, ValidationError{Msg: "username is required"}
	case len(password) < minPasswordLen:
		return model.User{}, ValidationError{Msg: fmt.Sprintf("password must be at least %d characters", minPasswordLen)}
	case !validRole(role):
		return model.User{}, ValidationError{Msg: "role must be admin or user"}
	}

	u, err := model.NewUser(username, password, role)
	if err != nil {
		return model.User{}, err
	}
	err = repo.WithTx(ctx, func(tx repository.Repository) error {
		if err := tx.CreateUser(ctx, &u); err != nil {
			if IsConflict(err) {
				return ValidationError{Msg: fmt.Sprintf("user %s already exists", username)}
			}
			return err
		}
		return audit(ctx, tx, ActionUserCreated, username, actor, "role="+role)
	})
	if err != nil {
		return model.User{}, err
	}
	return u, nil
}

// SeedAdmin creates the admin account unless it already exists.
func SeedAdmin(ctx context.Context, repo repository.Repository, username, password string) (bool, error) {
	if _, err := repo.GetUserByUsername(ctx, username); err == nil {
		return false, nil
	} else if !IsNotFound(err) {
		return false, err
	}
	if _, err := CreateUser(ctx, repo, "system", username, password, model.RoleAdmin); err != nil {
		return false, err
	}
	return true, nil
}

func ListUsers(ctx context.Context, repo repository.Repository) ([]repository.UserWithDevices, error) {
	return repo.ListUsersWithDevices(ctx)
}

func GetUser(ctx context.Context, repo repository.Repository, username string) (repository.UserWithDevices, error) {
	return repo.GetUserWithDevices(ctx, username)
}

func UpdateUserRole(ctx context.Context, repo repository.Repository, actor, username, role string) error {
	if !validRole(role) {
		return ValidationError{Msg: "role must be admin or user"}
	}
	if username == actor && role != model.RoleAdmin {
		return ValidationError{Msg: "cannot remove your own admin role"}
	}
	return repo.WithTx(ctx, func(tx repository.Repository) error {
		if err := tx.UpdateUserRole(ctx, username, role); err != nil {
			return err
		}
		return audit(ctx, tx, ActionRoleChanged, username, actor, "role="+role)
	})
}

func SetVPNAccess(ctx context.Context, repo repository.Repository, actor, username string, enabled bool) error {
	action := ActionVPNDisabled
	if enabled {
		action = ActionVPNEnabled
	}
	return repo.WithTx(ctx, func(tx repository.Repository) error {
		if err := tx.SetUserVPNAccess(ctx, username, enabled); err != nil {
			return err
		}
		return audit(ctx, tx, action, username, actor, "")
	})
}

func DeleteUser(ctx context.Context, repo repository.Repository, actor, username string) error {
	if username == actor {
		return ValidationError{Msg: "cannot delete your own account"}
	}
	return repo.WithTx(ctx, func(tx repository.Repository) error {
		ok, err := tx.DeleteUser(ctx, username)
		if err != nil {
			return err
		}
		if !ok {
			return repository.ErrNotFound
		}
		return audit(ctx, tx, ActionUserDeleted, username, actor, "")
	})
}
