package admin

import (
	"context"
	"fmt"
)

func (a *App) migrate(ctx context.Context) error {
	if err := a.migrator.Migrate(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Migrations applied")
	return nil
}

func (a *App) credentials(args []string) (string, string, error) {
	email := ""
	if len(args) > 0 {
		email = args[0]
	} else {
		var err error
		if email, err = GetSimpleText(a.reader, "Email", a.errOut); err != nil {
			return "", "", err
		}
	}
	password, err := GetPassword(a.reader, a.errOut)
	if err != nil {
		return "", "", err
	}
	return email, password, nil
}

func (a *App) register(ctx context.Context, args []string) error {
	email, password, err := a.credentials(args)
	if err != nil {
		return err
	}
	sess, err := a.users.Register(ctx, email, password)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.errOut, "Registered %s (%s)\n", sess.User.Email, sess.User.ID)
	_, err = fmt.Fprintln(a.out, sess.Token)
	return err
}

func (a *App) login(ctx context.Context, args []string) error {
	email, password, err := a.credentials(args)
	if err != nil {
		return err
	}
	sess, err := a.users.Login(ctx, email, password)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(a.out, sess.Token)
	return err
}

func (a *App) whoami(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	claims, err := a.users.Authenticate(ctx, args[0])
	if err != nil {
		return err
	}
	user, err := a.users.Get(ctx, claims.Subject)
	if err != nil {
		return err
	}
	return a.printJSON(user)
}

func (a *App) listSchedules(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	claims, err := a.users.Authenticate(ctx, args[0])
	if err != nil {
		return err
	}
	list, err := a.schedules.List(ctx, claims.Subject)
	if err != nil {
		return err
	}
	return a.printJSON(list)
}
