package main

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"
)

const (
	FlagUsername = "username"
	FlagEmail    = "email"
	FlagPassword = "password"
)

// GetRegisterCmd returns the account registration command.
func GetRegisterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a new account",
		Run: func(cmd *cobra.Command, args []string) {
			// Parse inputs
			username, err := cmd.Flags().GetString(FlagUsername)
			if err != nil {
				log.Fatalf("%s flag: %v", FlagUsername, err)
			}
			email, err := cmd.Flags().GetString(FlagEmail)
			if err != nil {
				log.Fatalf("%s flag: %v", FlagEmail, err)
			}
			password, err := cmd.Flags().GetString(FlagPassword)
			if err != nil {
				log.Fatalf("%s flag: %v", FlagPassword, err)
			}

			// Work
			c := newClient(cmd)
			fatalOnErr("register", c.Register(context.Background(), username, email, password))

			fmt.Println("Account created, you can log in now")
		},
	}
	cmd.Flags().String(FlagUsername, "", "user name")
	cmd.Flags().String(FlagEmail, "", "account email")
	cmd.Flags().String(FlagPassword, "", "account password")

	return cmd
}

// GetLoginCmd returns the login command: the credential is saved to the session file.
func GetLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and save the session",
		Run: func(cmd *cobra.Command, args []string) {
			// Parse inputs
			email, err := cmd.Flags().GetString(FlagEmail)
			if err != nil {
				log.Fatalf("%s flag: %v", FlagEmail, err)
			}
			password, err := cmd.Flags().GetString(FlagPassword)
			if err != nil {
				log.Fatalf("%s flag: %v", FlagPassword, err)
			}

			// Work
			c := newClient(cmd)
			fatalOnErr("login", c.Login(context.Background(), email, password))

			state := c.Session().State()
			fmt.Printf("Logged in as %s (%s)\n", state.Name, state.UserId)
		},
	}
	cmd.Flags().String(FlagEmail, "", "account email")
	cmd.Flags().String(FlagPassword, "", "account password")

	return cmd
}

// GetLogoutCmd returns the logout command.
func GetLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the saved session",
		Run: func(cmd *cobra.Command, args []string) {
			newClient(cmd).Logout()
			fmt.Println("Logged out")
		},
	}
}

// GetWhoamiCmd returns the current user profile command.
func GetWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Print the current user profile",
		Run: func(cmd *cobra.Command, args []string) {
			c := newClient(cmd)

			profile, err := c.Profile(context.Background())
			fatalOnErr("whoami", err)

			fmt.Printf("%s <%s> (%s)\n", profile.Username, profile.Email, profile.Id)
		},
	}
}

// GetStatusCmd returns the API / session status command.
func GetStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check the API availability and the session state",
		Run: func(cmd *cobra.Command, args []string) {
			c := newClient(cmd)

			apiStatus := "up"
			if err := c.Health(context.Background()); err != nil {
				apiStatus = "down: " + err.Error()
			}
			fmt.Printf("API %s: %s\n", c.BaseUrl(), apiStatus)

			state := c.Session().State()
			if state.Token == "" {
				fmt.Println("Session: not authenticated")
				return
			}
			fmt.Printf("Session: %s (%s)\n", state.Name, state.UserId)
		},
	}
}

func init() {
	rootCmd.AddCommand(
		GetRegisterCmd(),
		GetLoginCmd(),
		GetLogoutCmd(),
		GetWhoamiCmd(),
		GetStatusCmd(),
	)
}
