package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/itiky/synclist/model"
)

// GetItemCmd returns the item management command group.
func GetItemCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "item",
		Short: "Add / delete / claim list items",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "add [listId] [name]",
			Short: "Add an item to the list",
			Args:  cobra.MinimumNArgs(2),
			Run: func(cmd *cobra.Command, args []string) {
				c := newClient(cmd)
				fatalOnErr("item add", c.AddItem(context.Background(), model.ListId(args[0]), strings.Join(args[1:], " ")))

				fmt.Println("Item added")
			},
		},
		&cobra.Command{
			Use:   "delete [itemId]",
			Short: "Delete an item",
			Args:  cobra.ExactArgs(1),
			Run: func(cmd *cobra.Command, args []string) {
				c := newClient(cmd)
				fatalOnErr("item delete", c.DeleteItem(context.Background(), model.ItemId(args[0])))

				fmt.Println("Item deleted")
			},
		},
		&cobra.Command{
			Use:   "claim [itemId]",
			Short: "Claim an unclaimed item or unclaim an own claim",
			Args:  cobra.ExactArgs(1),
			Run: func(cmd *cobra.Command, args []string) {
				c := newClient(cmd)
				fatalOnErr("item claim", c.ClaimItem(context.Background(), model.ItemId(args[0])))

				fmt.Println("Item claim toggled")
			},
		},
	)

	return cmd
}

func init() {
	rootCmd.AddCommand(GetItemCmd())
}
