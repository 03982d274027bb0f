package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"asetmon/internal/auth"
	"asetmon/internal/core"
)

func newUserCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage login users",
	}
	cmd.AddCommand(newUserAddCmd(a))
	cmd.AddCommand(newUserPasswdCmd(a))
	return cmd
}

func newUserAddCmd(a *app) *cobra.Command {
	var (
		name     string
		role     string
		password string
	)
	cmd := &cobra.Command{
		Use:   "add <username>",
		Short: "Create a user with a bcrypt-hashed password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			username := strings.TrimSpace(args[0])
			if username == "" {
				return fmt.Errorf("username must not be empty")
			}
			pw, err := a.password(password)
			if err != nil {
				return err
			}
			hash, err := auth.HashPassword(pw)
			if err != nil {
				return err
			}
			if name == "" {
				name = username
			}

			repo, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer repo.Close()

			id, err := repo.CreateUser(cmd.Context(), core.User{
				Username:    username,
				Password:    hash,
				DisplayName: name,
				Role:        role,
			})
			if err != nil {
				return err
			}
			cmd.Printf("Created user %s (id %d, role %s)\n", username, id, role)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name (defaults to the username)")
	cmd.Flags().StringVar(&role, "role", "admin", "role shown in the dashboard")
	cmd.Flags().StringVar(&password, "password", "", "password; read from stdin when empty")
	return cmd
}

func newUserPasswdCmd(a *app) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "passwd <username>",
		Short: "Replace a user's password, hashing it with bcrypt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := a.password(password)
			if err != nil {
				return err
			}
			hash, err := auth.HashPassword(pw)
			if err != nil {
				return err
			}

			repo, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer repo.Close()

			if err := repo.SetPassword(cmd.Context(), args[0], hash); err != nil {
				return err
			}
			cmd.Printf("Password updated for %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "new password; read from stdin when empty")
	return cmd
}

// password returns flag, or the first line of stdin when flag is empty.
func (a *app) password(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	line, err := bufio.NewReader(a.in).ReadString('\n')
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		if err != nil {
			return "", fmt.Errorf("read password from stdin: %w", err)
		}
		return "", fmt.Errorf("password must not be empty")
	}
	return line, nil
}
