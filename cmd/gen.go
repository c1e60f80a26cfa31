package main

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/itiky/synclist/storage"
)

const (
	FlagFilePath = "file-path"
	FlagUsers    = "users"
	FlagLists    = "lists"
	FlagItems    = "items"
)

// GetSeedCmd returns generate demo store command.
func GetSeedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Generate dev server demo data",
		Run: func(cmd *cobra.Command, args []string) {
			// Parse inputs
			filePath, err := cmd.Flags().GetString(FlagFilePath)
			if err != nil {
				log.Fatalf("%s flag: %v", FlagFilePath, err)
			}
			usersNum, err := cmd.Flags().GetInt(FlagUsers)
			if err != nil {
				log.Fatalf("%s flag: %v", FlagUsers, err)
			}
			listsNum, err := cmd.Flags().GetInt(FlagLists)
			if err != nil {
				log.Fatalf("%s flag: %v", FlagLists, err)
			}
			itemsNum, err := cmd.Flags().GetInt(FlagItems)
			if err != nil {
				log.Fatalf("%s flag: %v", FlagItems, err)
			}

			// Work
			if err := storage.GenAndSaveDemoStore(filePath, usersNum, listsNum, itemsNum); err != nil {
				log.Fatalf("seed failed: %v", err)
			}
		},
	}
	cmd.Flags().String(FlagFilePath, "./synclist.dat", "(optional) output file path")
	cmd.Flags().Int(FlagUsers, 3, "(optional) number of users")
	cmd.Flags().Int(FlagLists, 5, "(optional) number of lists")
	cmd.Flags().Int(FlagItems, 10, "(optional) number of items per list")

	return cmd
}

func init() {
	rootCmd.AddCommand(GetSeedCmd())
}
