package main

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/quangdang46/talent-passport/services/auth-client/internal/domain"
	"github.com/quangdang46/talent-passport/services/auth-client/internal/infrastructure/callback"
)

var loginAction = withApp(func(ctx context.Context, c *cli.Context, app *application) error {
	out := c.App.Writer

	if c.Bool("no-wait") {
		start, err := app.auth.BeginLogin(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Open this URL to sign in:\n\n  %s\n\nThen run: passport callback '<redirect url>'\n", start.AuthURL)
		return nil
	}

	listener := callback.NewServer(app.cfg.CallbackAddr, app.auth, app.logger)
	if err := listener.Start(); err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = listener.Shutdown(shutdownCtx)
	}()

	start, err := app.auth.BeginLogin(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Open this URL to sign in:\n\n  %s\n\nWaiting for the redirect on %s ...\n", start.AuthURL, listener.Addr())

	waitCtx, cancel := context.WithTimeout(ctx, app.cfg.Storage.PendingTTL)
	defer cancel()
	result, err := listener.Wait(waitCtx)
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("login attempt %s timed out", start.AttemptID)
	}
	if err != nil {
		return err
	}
	printLogin(out, result)
	return nil
})

var callbackAction = withApp(func(ctx context.Context, c *cli.Context, app *application) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: passport callback <url>", 2)
	}
	result, err := app.auth.HandleCallback(ctx, c.Args().First())
	if err != nil {
		return err
	}
	printLogin(c.App.Writer, result)
	return nil
})

var whoamiAction = withApp(func(ctx context.Context, c *cli.Context, app *application) error {
	account, err := app.auth.CurrentAccount(ctx)
	if err != nil {
		return err
	}
	out := c.App.Writer
	printAccount(out, account)

	balance, err := app.auth.Balance(ctx)
	switch {
	case err == nil:
		fmt.Fprintf(out, "Balance:   %s MIST (%d coins)\n", balance.TotalBalance, balance.ObjectCount)
	case errors.Is(err, domain.ErrConfiguration):
	default:
		fmt.Fprintf(out, "Balance:   unavailable (%v)\n", err)
	}
	return nil
})

var signAction = withApp(func(ctx context.Context, c *cli.Context, app *application) error {
	txBytes, err := txArg(c)
	if err != nil {
		return err
	}
	sig, err := app.auth.SignTransaction(ctx, txBytes)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, sig.Signature)
	return nil
})

var executeAction = withApp(func(ctx context.Context, c *cli.Context, app *application) error {
	txBytes, err := txArg(c)
	if err != nil {
		return err
	}

	var result *domain.TransactionResult
	if c.Bool("sponsored") {
		result, err = app.auth.ExecuteSponsored(ctx, txBytes)
	} else {
		result, err = app.auth.ExecuteTransaction(ctx, txBytes)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Digest: %s\nStatus: %s\n", result.Digest, result.Status)
	return nil
})

var logoutAction = withApp(func(ctx context.Context, c *cli.Context, app *application) error {
	if err := app.auth.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, "Signed out.")
	return nil
})

var nonceAction = withApp(func(ctx context.Context, c *cli.Context, app *application) error {
	nonce, err := app.auth.RecomputeNonce(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, nonce)
	return nil
})

func txArg(c *cli.Context) ([]byte, error) {
	if c.NArg() != 1 {
		return nil, cli.Exit(fmt.Sprintf("usage: passport %s <base64-tx>", c.Command.Name), 2)
	}
	txBytes, err := base64.StdEncoding.DecodeString(c.Args().First())
	if err != nil {
		return nil, cli.Exit("transaction bytes must be base64", 2)
	}
	return txBytes, nil
}

func printLogin(out io.Writer, result *domain.LoginResult) {
	if result == nil || result.Account == nil {
		fmt.Fprintln(out, "Login did not complete.")
		return
	}
	fmt.Fprintln(out, "Signed in.")
	printAccount(out, result.Account)
}

func printAccount(out io.Writer, account *domain.Account) {
	fmt.Fprintf(out, "Address:   %s\n", account.Address)
	fmt.Fprintf(out, "Provider:  %s\n", account.Provider)
	if account.Email != "" {
		fmt.Fprintf(out, "Email:     %s\n", account.Email)
	}
	if account.Name != "" {
		fmt.Fprintf(out, "Name:      %s\n", account.Name)
	}
	fmt.Fprintf(out, "Max epoch: %d\n", account.MaxEpoch)
	fmt.Fprintf(out, "Expires:   %s\n", account.ExpiresAtTime().Format(time.RFC3339))
}
