package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/Digitalguyco/convade-backend/core"
	"github.com/Digitalguyco/convade-backend/core/user"
)

// addUser updates or creates a user.User
func (cli *commandLine) addUser(email, pwd string, isAdmin bool) error {
	ctx := context.Background()
	email = core.CleanString(email, true /* lower */)

	usr, err := cli.usrRepo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Cause(err) != user.ErrNotFound {
			return err
		}
		usr = user.User{
			Email: email,
			Role:  user.RoleStudent,
		}
	}
	if isAdmin {
		usr.Role = user.RoleAdmin
	}
	usr.Status = user.StatusActive
	usr.IsEmailVerified = true
	if err := usr.SetPassword(pwd); err != nil {
		return err
	}
	if _, err := cli.usrRepo.UpdateOrCreateUser(ctx, usr); err != nil {
		return err
	}
	return nil
}
