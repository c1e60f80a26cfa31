package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/itiky/synclist/service/server"
	"github.com/itiky/synclist/storage"
)

const (
	FlagPort          = "port"
	FlagPersistPeriod = "persist-period"
	FlagJwtSecret     = "jwt-secret"
	FlagTokenTtl      = "token-ttl"
)

// GetServerCmd returns the dev API server start command.
func GetServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Start SyncList dev API server",
		Run: func(cmd *cobra.Command, args []string) {
			// Parse inputs
			port, err := cmd.Flags().GetInt(FlagPort)
			if err != nil {
				log.Fatalf("%s flag: %v", FlagPort, err)
			}
			persistDur, err := cmd.Flags().GetDuration(FlagPersistPeriod)
			if err != nil {
				log.Fatalf("%s flag: %v", FlagPersistPeriod, err)
			}
			filePath, err := cmd.Flags().GetString(FlagFilePath)
			if err != nil {
				log.Fatalf("%s flag: %v", FlagFilePath, err)
			}
			jwtSecret, err := cmd.Flags().GetString(FlagJwtSecret)
			if err != nil {
				log.Fatalf("%s flag: %v", FlagJwtSecret, err)
			}
			tokenTtl, err := cmd.Flags().GetDuration(FlagTokenTtl)
			if err != nil {
				log.Fatalf("%s flag: %v", FlagTokenTtl, err)
			}

			// Init service
			store := storage.NewStore()
			if _, err := os.Stat(filePath); err == nil {
				if store, err = storage.NewStoreFromFile(filePath); err != nil {
					log.Fatalf("store init: %v", err)
				}
			} else {
				log.Printf("Store file (%s) not found, starting empty", filePath)
			}

			tokens, err := server.NewTokenIssuer(jwtSecret, tokenTtl)
			if err != nil {
				log.Fatalf("token issuer init: %v", err)
			}

			svc, err := server.NewService(store, tokens, filePath, persistDur)
			if err != nil {
				log.Fatalf("service init: %v", err)
			}

			// Start server
			svc.Start()

			httpSrv := &http.Server{
				Addr:    ":" + strconv.Itoa(port),
				Handler: svc.Handler(),
			}
			go func() {
				if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatalf("HTTP server: listen: %v", err)
				}
			}()

			log.Printf("HTTP server started: :%d", port)

			// Wait for signal
			signalCh := make(chan os.Signal, 1)
			signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)
			<-signalCh

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := httpSrv.Shutdown(ctx); err != nil {
				log.Printf("HTTP server: shutdown: %v", err)
			}

			svc.Stop()
		},
	}
	cmd.Flags().Int(FlagPort, 3000, "(optional) server port")
	cmd.Flags().Duration(FlagPersistPeriod, 2*time.Second, "(optional) store file persistence period")
	cmd.Flags().String(FlagFilePath, "./synclist.dat", "(optional) path to the store file")
	cmd.Flags().String(FlagJwtSecret, envOr(EnvJwtSecret, "synclist-dev-secret"), "token signing secret ("+EnvJwtSecret+")")
	cmd.Flags().Duration(FlagTokenTtl, 24*time.Hour, "(optional) issued token lifetime")

	return cmd
}

func init() {
	rootCmd.AddCommand(GetServerCmd())
}
