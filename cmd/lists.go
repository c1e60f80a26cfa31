package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/itiky/synclist/model"
)

// GetListsCmd returns the lists overview command.
func GetListsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lists",
		Short: "Print owned and joined lists",
		Run: func(cmd *cobra.Command, args []string) {
			c := newClient(cmd)

			owned, joined, err := c.GetPartitionedLists(context.Background())
			fatalOnErr("lists", err)

			printLists := func(title string, lists []model.ListSummary) {
				fmt.Printf("%s (%d):\n", title, len(lists))
				for _, l := range lists {
					fmt.Printf("  %s  %s\n", l.Id, l.Name)
				}
			}
			printLists("My lists", owned)
			printLists("Joined lists", joined)
		},
	}
}

// GetListCmd returns the list management command group.
func GetListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Create / delete lists",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "create [name]",
			Short: "Create a new list",
			Args:  cobra.MinimumNArgs(1),
			Run: func(cmd *cobra.Command, args []string) {
				c := newClient(cmd)
				fatalOnErr("list create", c.CreateList(context.Background(), strings.Join(args, " ")))

				fmt.Println("List created")
			},
		},
		&cobra.Command{
			Use:   "delete [listId]",
			Short: "Delete an owned list",
			Args:  cobra.ExactArgs(1),
			Run: func(cmd *cobra.Command, args []string) {
				c := newClient(cmd)
				fatalOnErr("list delete", c.DeleteList(context.Background(), model.ListId(args[0])))

				fmt.Println("List deleted")
			},
		},
	)

	return cmd
}

// GetJoinCmd returns the join by code command (the code is the list id).
func GetJoinCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "join [code]",
		Short: "Join a list by its share code",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			c := newClient(cmd)

			msg, err := c.JoinList(context.Background(), model.ListId(args[0]))
			fatalOnErr("join", err)

			fmt.Println(msg)
		},
	}
}

func init() {
	rootCmd.AddCommand(
		GetListsCmd(),
		GetListCmd(),
		GetJoinCmd(),
	)
}
