package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/fieldcrypt/cmd/app/commands"
	"github.com/allisson/fieldcrypt/internal/app"
)

func getKeyCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "create-crypto-key",
			Usage: "Generate a new encryption or hmac key wrapped by the KMS",
			Flags: []cli.Flag{
				tenantFlag("Tenant the key belongs to (empty for the default tenant)"),
				&cli.StringFlag{
					Name:     "usage",
					Aliases:  []string{"u"},
					Required: true,
					Usage:    "Key usage: 'encryption' or 'hmac'",
				},
				&cli.StringFlag{
					Name:  "type",
					Usage: "Key type (aes-gcm, chacha20-poly1305, hmac-sha256); defaults by usage",
				},
				&cli.DurationFlag{
					Name:  "activate-in",
					Usage: "Delay before the key becomes active (e.g. 1h)",
				},
				&cli.BoolFlag{
					Name:  "key-on",
					Usage: "Move existing records onto the new key",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return withContainer(ctx, func(c *app.Container) error {
					keyUseCase, err := c.KeyUseCase()
					if err != nil {
						return err
					}
					return commands.RunCreateCryptoKey(ctx, keyUseCase, c.Logger(), commands.DefaultIO().Writer,
						commands.CreateCryptoKeyParams{
							TenantID:   cmd.String("tenant-id"),
							Usage:      cmd.String("usage"),
							KeyType:    cmd.String("type"),
							ActivateIn: cmd.Duration("activate-in"),
							KeyOn:      cmd.Bool("key-on"),
							Format:     cmd.String("format"),
						},
					)
				})
			},
		},
		{
			Name:  "set-key-rotation",
			Usage: "Start or cancel a key transition",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "id",
					Aliases:  []string{"i"},
					Required: true,
					Usage:    "Crypto key ID (UUID)",
				},
				&cli.StringFlag{
					Name:     "mode",
					Aliases:  []string{"m"},
					Required: true,
					Usage:    "Rotation mode: 'none', 'key_on' or 'key_off'",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return withContainer(ctx, func(c *app.Container) error {
					keyUseCase, err := c.KeyUseCase()
					if err != nil {
						return err
					}
					return commands.RunSetKeyRotation(ctx, keyUseCase, c.Logger(), commands.DefaultIO().Writer,
						cmd.String("id"), cmd.String("mode"))
				})
			},
		},
		{
			Name:  "list-crypto-keys",
			Usage: "List live crypto keys without key material",
			Flags: []cli.Flag{
				tenantFlag("Only list keys of this tenant"),
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return withContainer(ctx, func(c *app.Container) error {
					keyUseCase, err := c.KeyUseCase()
					if err != nil {
						return err
					}
					return commands.RunListCryptoKeys(ctx, keyUseCase, commands.DefaultIO().Writer,
						cmd.String("tenant-id"), cmd.String("format"))
				})
			},
		},
	}
}
