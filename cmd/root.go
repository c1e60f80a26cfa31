package main

import (
	"errors"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/itiky/synclist/service/client"
	"github.com/itiky/synclist/session"
)

const (
	FlagApiUrl    = "api-url"
	FlagTokenFile = "token-file"
	FlagTimeout   = "timeout"
)

const (
	EnvApiUrl    = "SYNCLIST_API_URL"
	EnvTokenFile = "SYNCLIST_TOKEN_FILE"
	EnvJwtSecret = "SYNCLIST_JWT_SECRET"
)

// rootCmd is a base command.
var rootCmd = &cobra.Command{
	Use:   "synclist",
	Short: "SyncList shared shopping lists client / dev server",
}

// newClient builds the API client restoring the saved session.
func newClient(cmd *cobra.Command) *client.Client {
	apiUrl, err := cmd.Flags().GetString(FlagApiUrl)
	if err != nil {
		log.Fatalf("%s flag: %v", FlagApiUrl, err)
	}
	tokenFile, err := cmd.Flags().GetString(FlagTokenFile)
	if err != nil {
		log.Fatalf("%s flag: %v", FlagTokenFile, err)
	}
	timeout, err := cmd.Flags().GetDuration(FlagTimeout)
	if err != nil {
		log.Fatalf("%s flag: %v", FlagTimeout, err)
	}

	tokenStore, err := session.NewFileStore(tokenFile)
	if err != nil {
		log.Fatalf("token store init: %v", err)
	}
	sess := session.NewSession(tokenStore)
	if _, err := sess.Restore(); err != nil {
		log.Printf("session restore: %v", err)
	}

	c, err := client.NewClient(apiUrl, sess, timeout)
	if err != nil {
		log.Fatalf("client init: %v", err)
	}

	return c
}

// fatalOnErr prints the user displayable error and exits.
func fatalOnErr(operation string, err error) {
	if err == nil {
		return
	}

	if client.IsAuthExpired(err) || errors.Is(err, client.ErrNotAuthenticated) {
		log.Fatalf("%s: %s (use the login command)", operation, client.DisplayMessage(err))
	}
	log.Fatalf("%s: %s", operation, client.DisplayMessage(err))
}

// envOr returns the environment variable value or the default one.
func envOr(key, defValue string) string {
	if value, found := os.LookupEnv(key); found && value != "" {
		return value
	}

	return defValue
}

func defaultTokenFile() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".synclist", "session.json")
	}

	return filepath.Join(homeDir, ".synclist", "session.json")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("rootCmd.Execute: %v", err)
	}
}

func init() {
	// .env is optional
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf(".env load: %v", err)
	}

	rootCmd.PersistentFlags().String(FlagApiUrl, envOr(EnvApiUrl, "http://127.0.0.1:3000"), "API origin ("+EnvApiUrl+")")
	rootCmd.PersistentFlags().String(FlagTokenFile, envOr(EnvTokenFile, defaultTokenFile()), "session file path ("+EnvTokenFile+")")
	rootCmd.PersistentFlags().Duration(FlagTimeout, 10*time.Second, "(optional) request timeout")
}
