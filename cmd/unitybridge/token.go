package main

// file: cmd/unitybridge/token.go

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dkoosis/unitybridge/internal/secret"
)

func newTokenCommand() *cobra.Command {
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Manage the broker token used by the nats transport",
		Long: `Manage the broker token used by the nats transport.

The token is looked up in ` + secret.EnvToken + ` first, then in the OS keyring
(or the token file when no keyring is available), then in nats.token from
the configuration file.`,
	}
	tokenCmd.AddCommand(
		&cobra.Command{
			Use:   "set [TOKEN]",
			Short: "Store a token, reading it from stdin when not given",
			Args:  cobra.MaximumNArgs(1),
			RunE:  tokenSetAction,
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Remove the stored token",
			Args:  cobra.NoArgs,
			RunE:  tokenClearAction,
		},
		&cobra.Command{
			Use:   "show",
			Short: "Show where the effective token comes from",
			Args:  cobra.NoArgs,
			RunE:  tokenShowAction,
		},
	)
	return tokenCmd
}

func tokenStorage(cmd *cobra.Command) (secret.Storage, error) {
	a := appFrom(cmd)
	return secret.NewStorage(a.cfg.Auth.TokenPath, a.logger)
}

func tokenSetAction(cmd *cobra.Command, args []string) error {
	storage, err := tokenStorage(cmd)
	if err != nil {
		return err
	}
	var token string
	if len(args) == 1 {
		token = args[0]
	} else {
		token, err = promptForToken(cmd.InOrStdin(), cmd.ErrOrStderr())
		if err != nil {
			return err
		}
	}
	if err := storage.Save(token, appFrom(cmd).cfg.NATS.URL); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), color.GreenString("Token saved to %s", storage.Describe()))
	return nil
}

func promptForToken(in io.Reader, prompt io.Writer) (string, error) {
	fmt.Fprint(prompt, "Enter broker token: ")
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", errors.Wrap(err, "failed to read token")
	}
	token := strings.TrimSpace(line)
	if token == "" {
		return "", errors.New("token cannot be empty")
	}
	return token, nil
}

func tokenClearAction(cmd *cobra.Command, _ []string) error {
	storage, err := tokenStorage(cmd)
	if err != nil {
		return err
	}
	if err := storage.Delete(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Token removed from %s\n", storage.Describe())
	return nil
}

func tokenShowAction(cmd *cobra.Command, _ []string) error {
	storage, err := tokenStorage(cmd)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	token, source, err := secret.Resolve(storage, appFrom(cmd).cfg.NATS.Token)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Storage: %s\n", storage.Describe())
	if source == secret.SourceNone {
		fmt.Fprintln(out, color.YellowString("No token configured."))
		return nil
	}
	fmt.Fprintf(out, "Source:  %s\n", source)
	fmt.Fprintf(out, "Token:   %s\n", maskToken(token))
	if source == secret.SourceStorage {
		data, err := storage.Data()
		if err != nil {
			return err
		}
		if data != nil {
			if data.Label != "" {
				fmt.Fprintf(out, "Label:   %s\n", data.Label)
			}
			fmt.Fprintf(out, "Updated: %s\n", humanize.Time(data.UpdatedAt))
		}
	}
	return nil
}

// maskToken keeps the last four characters of tokens long enough to spare them.
func maskToken(token string) string {
	if len(token) <= 8 {
		return strings.Repeat("*", len(token))
	}
	return strings.Repeat("*", len(token)-4) + token[len(token)-4:]
}
