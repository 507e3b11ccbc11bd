package main

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/quantumqp/portal/core"
	"github.com/quantumqp/portal/core/user"
)

// addUser creates a user.User, or reactivates and updates the account already using email.
func (cli *commandLine) addUser(name, email, pwd string, isAdmin bool) error {
	ctx := context.Background()
	role := user.RoleUser
	if isAdmin {
		role = user.RoleAdmin
	}

	usr, err := cli.usrSvc.GetByEmail(ctx, email)
	if err != nil {
		if !core.IsNotFound(err) {
			return err
		}
		_, err = cli.usrSvc.Create(ctx, user.NewUser{
			Name:            name,
			Email:           email,
			Password:        pwd,
			PasswordConfirm: pwd,
			Role:            role,
		})
		return err
	}

	usr.Name = core.CleanString(name)
	usr.Role = role
	usr.IsActive = true
	_, err = cli.usrSvc.SetPassword(ctx, usr, pwd)
	return err
}

func (cli *commandLine) resetPassword(email, pwd string) error {
	ctx := context.Background()
	usr, err := cli.usrSvc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	_, err = cli.usrSvc.SetPassword(ctx, usr, pwd)
	return err
}

func (cli *commandLine) deactivate(email string) error {
	ctx := context.Background()
	usr, err := cli.usrSvc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	usr.IsActive = false
	usr.UpdatedAt = time.Now().UTC()
	if _, err = cli.usrRepo.UpdateUser(ctx, usr); err != nil {
		return errors.Wrap(err, "deactivating user")
	}
	return nil
}
