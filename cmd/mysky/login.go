package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/iammatthias/mysky.wtf/internal/auth"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

var loginCmd = &cobra.Command{
	Use:   "login [handle]",
	Short: "Sign in with a handle and app password",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		handle := ""
		if len(args) > 0 {
			handle = args[0]
		}
		password, _ := cmd.Flags().GetString("password")
		return login(cmd.Context(), handle, password)
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Revoke the saved session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := agent()
		if err != nil {
			return err
		}
		if err := client.Logout(cmd.Context()); err != nil {
			logger.Warn("session revoke failed", "error", err)
		}
		if err := clearSession(); err != nil {
			return err
		}
		logger.Info("logged out")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in account",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := agent()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s (%s) on %s\n", client.Handle(), client.DID(), client.PDS())
		return nil
	},
}

func init() {
	loginCmd.Flags().StringP("password", "p", "", "app password (prompted when empty)")

	RootCmd.AddCommand(loginCmd, logoutCmd, whoamiCmd)
}

func login(ctx context.Context, handle, password string) error {
	if handle == "" {
		fmt.Print("Handle: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return fmt.Errorf("read handle: %w", err)
		}
		handle = strings.TrimSpace(line)
	}

	if password == "" {
		fmt.Print("App password: ")
		data, err := readPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		password = string(data)
	}

	authn, err := auth.NewXRPCAuthenticator(viper.GetString("entryway"), newResolver(), logger)
	if err != nil {
		return err
	}

	identifier, err := auth.NormalizeHandle(handle)
	if err != nil {
		return err
	}

	sess, err := authn.CreateSession(ctx, identifier, password)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if err := saveSession(sess); err != nil {
		return err
	}

	logger.Info("login successful", "did", sess.DID, "handle", sess.Handle, "pds", sess.PDS)
	return nil
}
