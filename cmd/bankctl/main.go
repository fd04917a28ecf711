package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli"

	"github.com/congo-pay/bankledger/internal/infra"
	"github.com/congo-pay/bankledger/internal/logging"
	"github.com/congo-pay/bankledger/internal/middleware"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "bankctl"
	app.Usage = "operator tooling for the bank and token ledgers"
	app.Commands = []cli.Command{
		{
			Name:  "caller-token",
			Usage: "issue a bearer token that authenticates an identity as the immediate caller",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "secret", EnvVar: "CALLER_JWT_SECRET", Usage: "HS256 signing secret"},
				cli.StringFlag{Name: "identity, i", Usage: "caller identity placed in the sub claim"},
				cli.DurationFlag{Name: "ttl", Value: 24 * time.Hour, Usage: "token lifetime, 0 for no expiry"},
			},
			Action: issueCallerToken,
		},
		{
			Name:  "migrate",
			Usage: "apply pending database migrations",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "database-url", EnvVar: "DATABASE_URL"},
				cli.StringFlag{Name: "log-level", EnvVar: "LOG_LEVEL", Value: "info"},
			},
			Action: migrate,
		},
	}
	return app
}

func issueCallerToken(c *cli.Context) error {
	secret, identity := c.String("secret"), c.String("identity")
	if secret == "" {
		return cli.NewExitError("secret is required (--secret or CALLER_JWT_SECRET)", 2)
	}
	if identity == "" {
		return cli.NewExitError("identity is required", 2)
	}
	token, err := middleware.SignCaller([]byte(secret), identity, c.Duration("ttl"))
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, token)
	return nil
}

func migrate(c *cli.Context) error {
	logger := logging.New(c.String("log-level"), "bankctl", "ops")
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := infra.NewPostgresPool(ctx, c.String("database-url"))
	if err != nil {
		return err
	}
	defer db.Close()
	return infra.Migrate(ctx, db, logger)
}
