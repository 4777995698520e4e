package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/raspiblitz/blitzdash/internal/session"
)

var loginToken string

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store the node access token",
	Long: `Save the access token issued by the node. Reads it from stdin when --token
is not given. The dashboard shows you as signed in while a token is stored.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := sessionStore()
		if err != nil {
			return err
		}

		token := loginToken
		if token == "" {
			fmt.Fprint(os.Stderr, "Access token: ")
			line, err := bufio.NewReader(os.Stdin).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("failed to read token: %w", err)
			}
			token = strings.TrimSpace(line)
		}

		if err := store.Save(token); err != nil {
			return err
		}
		fmt.Printf("✓ Token saved to %s\n", store.Path)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored access token",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := sessionStore()
		if err != nil {
			return err
		}
		if err := store.Clear(); err != nil {
			return err
		}
		fmt.Println("✓ Signed out")
		return nil
	},
}

func sessionStore() (*session.Store, error) {
	cfg, err := loadConfig(false)
	if err != nil {
		return nil, err
	}
	path, err := cfg.SessionFilePath()
	if err != nil {
		return nil, err
	}
	return session.NewStore(path), nil
}

func init() {
	loginCmd.Flags().StringVar(&loginToken, "token", "", "access token")
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
}
