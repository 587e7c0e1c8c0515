package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/fieldcrypt/cmd/app/commands"
	"github.com/allisson/fieldcrypt/internal/app"
)

func getSystemCommands(version string) []*cli.Command {
	return []*cli.Command{
		{
			Name:  "server",
			Usage: "Serve the API and run the rekey scheduler and the outbox processor",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return commands.RunServer(ctx, version)
			},
		},
		{
			Name:  "migrate",
			Usage: "Apply pending database migrations",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return withContainer(ctx, func(c *app.Container) error {
					cfg := c.Config()
					return commands.RunMigrations(c.Logger(), cfg.DBDriver, cfg.DBConnectionString)
				})
			},
		},
		{
			Name:  "rekey-once",
			Usage: "Run a single rekey pass over every tenant and exit",
			Flags: []cli.Flag{formatFlag()},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return withContainer(ctx, func(c *app.Container) error {
					rekeyUseCase, err := c.RekeyUseCase()
					if err != nil {
						return err
					}
					return commands.RunRekeyOnce(ctx, rekeyUseCase, c.Logger(),
						commands.DefaultIO().Writer, cmd.String("format"))
				})
			},
		},
	}
}
