package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/coursepalette/coursepalette/core"
	"github.com/coursepalette/coursepalette/core/access"
	"github.com/coursepalette/coursepalette/core/user"
)

func (cli *commandLine) addUserCmd() *cobra.Command {
	var name, uname, email, role string
	cmd := &cobra.Command{
		Use:   "adduser",
		Short: "Create a user, or update the one with the same username or email; the password is prompted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if uname == "" && email == "" {
				_ = cmd.Usage()
				return errHelp
			}
			r, err := access.ParseRole(role)
			if err != nil {
				return err
			}
			pwd, err := cli.readPassword("Enter password:")
			if err != nil {
				return err
			}
			usr, err := cli.addUser(cmd.Context(), name, uname, email, pwd, r)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cli.out, "%s %q <%s> is active\n", usr.Role, usr.Username, usr.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "the user's full name")
	cmd.Flags().StringVar(&uname, "username", "", "the user's username")
	cmd.Flags().StringVar(&email, "email", "", "the user's email")
	cmd.Flags().StringVar(&role, "role", string(access.RoleAdmin), "one of STUDENT, TEACHER or ADMIN")
	return cmd
}

// addUser updates or creates an active user.User with role.
func (cli *commandLine) addUser(ctx context.Context, name, uname, email, pwd string, role access.Role) (user.User, error) {
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)

	usr, err := cli.findUser(ctx, uname, email)
	if err != nil {
		if errors.Cause(err) != user.ErrNotFound {
			return user.User{}, err
		}
		usr = user.User{Name: name, Username: uname, Email: email}
		if err := user.CheckPassword(pwd, usr); err != nil {
			return user.User{}, err
		}
		return cli.usrSvc.Create(ctx, user.NewUser{
			Name:     core.CleanString(name),
			Username: uname,
			Email:    email,
			Password: pwd,
			Role:     string(role),
		})
	}

	if usr, err = cli.usrSvc.SetPassword(ctx, usr, pwd); err != nil {
		return user.User{}, err
	}
	usr.Role = role
	return cli.usrSvc.SetActive(ctx, usr, true)
}

// findUser returns the user owning uname, or else email.
func (cli *commandLine) findUser(ctx context.Context, uname, email string) (user.User, error) {
	err := user.ErrNotFound
	for _, key := range []string{uname, email} {
		if key == "" {
			continue
		}
		var usr user.User
		if usr, err = cli.usrSvc.GetByUsernameOrEmail(ctx, key); err == nil || errors.Cause(err) != user.ErrNotFound {
			return usr, err
		}
	}
	return user.User{}, err
}
