// Package tokencmder provides the token command for minting development
// bearer tokens.
package tokencmder

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/relay/api"
	"github.com/papercomputeco/relay/pkg/cliui"
	"github.com/papercomputeco/relay/pkg/config"
)

type tokenCommander struct {
	user      string
	jwtSecret string
	ttl       string
	save      bool

	configDir string
	viper     *viper.Viper
}

var tokenFlags = []string{
	config.FlagJWTSecret,
	config.FlagTokenTTL,
}

const tokenLongDesc string = `Mint a bearer token for the relay RPC server.

Tokens are HS256 JWTs signed with auth.jwt_secret whose subject becomes the
Dify user of every call made with them. In production tokens come from the
auth provider sharing that secret; this command is for development.

The token is printed on stdout. With --save it is also stored as
client.token so "relay chat" picks it up.

Examples:
  relay token --user alice
  relay token --user alice --token-ttl 1h --save`

const tokenShortDesc string = "Mint a development bearer token"

func NewTokenCmd() *cobra.Command {
	cmder := &tokenCommander{}

	cmd := &cobra.Command{
		Use:   "token",
		Short: tokenShortDesc,
		Long:  tokenLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.Flags, tokenFlags)
			cmder.viper = v
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVarP(&cmder.user, "user", "u", "", "User id to put in the token subject")
	config.AddStringFlag(cmd, config.Flags, config.FlagJWTSecret, &cmder.jwtSecret)
	config.AddStringFlag(cmd, config.Flags, config.FlagTokenTTL, &cmder.ttl)
	cmd.Flags().BoolVar(&cmder.save, "save", false, "Store the token as client.token in config.toml")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func (c *tokenCommander) run(stdout, stderr io.Writer) error {
	secret := c.viper.GetString("auth.jwt_secret")
	if secret == "" {
		return errors.New("auth.jwt_secret is not set")
	}

	ttl, err := time.ParseDuration(c.viper.GetString("auth.token_ttl"))
	if err != nil {
		return fmt.Errorf("invalid auth.token_ttl: %w", err)
	}

	token, err := api.IssueToken(secret, c.user, ttl)
	if err != nil {
		return fmt.Errorf("issuing token: %w", err)
	}

	fmt.Fprintln(stdout, token)

	if c.save {
		cfger, err := config.NewConfiger(c.configDir)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if err := cfger.SetConfigValue("client.token", token); err != nil {
			return fmt.Errorf("saving token: %w", err)
		}
		fmt.Fprintf(stderr, "  %s Saved token for %s (expires in %s)\n",
			cliui.SuccessMark,
			cliui.NameStyle.Render(c.user),
			cliui.FormatDuration(ttl),
		)
	}

	return nil
}
