package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/itiky/synclist/model"
	"github.com/itiky/synclist/service/client"
	"github.com/itiky/synclist/service/listsync"
	"github.com/itiky/synclist/service/realtime"
)

const (
	FlagMonitor       = "monitor"
	FlagMonitorPeriod = "monitor-period"
)

const watchHelp = "Commands: r (refresh), m (members), a <name> (add), c <n> (claim / unclaim), d <n> (delete), q (quit)"

// GetWatchCmd returns the live list view command.
func GetWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [listId]",
		Short: "Open a list and follow its changes live",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			// Parse inputs
			withMonitor, err := cmd.Flags().GetBool(FlagMonitor)
			if err != nil {
				log.Fatalf("%s flag: %v", FlagMonitor, err)
			}
			monitorDur, err := cmd.Flags().GetDuration(FlagMonitorPeriod)
			if err != nil {
				log.Fatalf("%s flag: %v", FlagMonitorPeriod, err)
			}
			timeout, err := cmd.Flags().GetDuration(FlagTimeout)
			if err != nil {
				log.Fatalf("%s flag: %v", FlagTimeout, err)
			}
			listId := model.ListId(strings.TrimSpace(args[0]))

			// Init service
			c := newClient(cmd)
			if !c.Session().IsAuthenticated() {
				fatalOnErr("watch", client.ErrNotAuthenticated)
			}
			sessionCh := c.Session().Changes()

			transport, err := realtime.NewWebsocketTransport(c.BaseUrl(), c.Session(), timeout)
			if err != nil {
				log.Fatalf("transport init: %v", err)
			}
			unit, err := listsync.NewUnit(c, transport, listsync.NewMonitor(monitorDur))
			if err != nil {
				log.Fatalf("sync unit init: %v", err)
			}
			defer unit.Close()

			if withMonitor {
				unit.Monitor().Start()
			}

			// Room first: deltas racing the snapshot fetch are replayed on top of it
			ctx := context.Background()
			if err := unit.Subscribe(ctx, listId); err != nil {
				log.Printf("realtime: %v (live updates are off, use r to refresh)", err)
			}
			if err := unit.Load(ctx, listId); err != nil {
				unit.Close()
				fatalOnErr("load", err)
			}
			fmt.Println(watchHelp)

			linesCh := make(chan string)
			go func() {
				scanner := bufio.NewScanner(os.Stdin)
				for scanner.Scan() {
					linesCh <- strings.TrimSpace(scanner.Text())
				}
				close(linesCh)
			}()

			signalCh := make(chan os.Signal, 1)
			signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)

			for {
				select {
				case <-signalCh:
					return
				case <-unit.Changes():
					if snapshot, ok := unit.Snapshot(); ok {
						renderList(snapshot, c.Session().UserId())
					}
				case err := <-unit.Errors():
					fmt.Printf("! %v: live updates stopped, use r to refresh\n", err)
				case <-sessionCh:
					if !c.Session().IsAuthenticated() {
						fmt.Println("! Your session has expired, please log in again")
						return
					}
				case line, ok := <-linesCh:
					if !ok || line == "q" {
						return
					}
					if err := handleWatchLine(ctx, unit, c.Session().UserId(), line); err != nil {
						fmt.Printf("! %s\n", client.DisplayMessage(err))
					}
				}
			}
		},
	}
	cmd.Flags().Bool(FlagMonitor, false, "(optional) print sync stats periodically")
	cmd.Flags().Duration(FlagMonitorPeriod, 5*time.Second, "(optional) sync stats print period")

	return cmd
}

// handleWatchLine performs a single interactive command.
func handleWatchLine(ctx context.Context, unit *listsync.Unit, userId model.UserId, line string) error {
	if line == "" {
		return nil
	}

	op, arg := line, ""
	if idx := strings.IndexByte(line, ' '); idx > 0 {
		op, arg = line[:idx], strings.TrimSpace(line[idx+1:])
	}

	itemAt := func() (model.Item, error) {
		snapshot, ok := unit.Snapshot()
		if !ok {
			return model.Item{}, fmt.Errorf("list is not loaded")
		}
		idx, err := strconv.Atoi(arg)
		if err != nil || idx < 0 || idx >= len(snapshot.Items) {
			return model.Item{}, fmt.Errorf("invalid item number: %s", arg)
		}
		return snapshot.Items[idx], nil
	}

	switch op {
	case "r":
		return unit.Refresh(ctx)
	case "m":
		snapshot, ok := unit.Snapshot()
		if !ok {
			return fmt.Errorf("list is not loaded")
		}
		fmt.Print(renderMembers(snapshot, userId))
	case "a":
		return unit.AddItem(ctx, arg)
	case "c":
		item, err := itemAt()
		if err != nil {
			return err
		}
		if item.ClaimStateFor(userId) == model.ClaimedByOther {
			return fmt.Errorf("%s is already claimed by %s", item.Name, item.ClaimedBy.Username)
		}
		return unit.ToggleClaim(ctx, item.Id)
	case "d":
		item, err := itemAt()
		if err != nil {
			return err
		}
		return unit.DeleteItem(ctx, item.Id)
	default:
		fmt.Println(watchHelp)
	}

	return nil
}

// renderList prints the list snapshot.
func renderList(l model.ListSnapshot, userId model.UserId) {
	fmt.Printf("\n== %s (%d items, %d members)\n", l.Name, len(l.Items), len(l.Members))
	for i, item := range l.Items {
		mark, claim := "[ ]", ""
		switch item.ClaimStateFor(userId) {
		case model.ClaimedByMe:
			mark, claim = "[x]", " (claimed by me)"
		case model.ClaimedByOther:
			mark, claim = "[-]", fmt.Sprintf(" (claimed by %s)", item.ClaimedBy.Username)
		}
		fmt.Printf("%3d %s %s%s\n", i, mark, item.Name, claim)
	}
}

// renderMembers lists the members, the owner goes first.
func renderMembers(l model.ListSnapshot, userId model.UserId) string {
	str := strings.Builder{}
	str.WriteString(fmt.Sprintf("== %s members\n", l.Name))
	for _, m := range l.OrderedMembers() {
		str.WriteString("  " + m.Username)
		if m.Id == l.Owner {
			str.WriteString(" (Owner)")
		}
		if m.Id == userId {
			str.WriteString(" (me)")
		}
		str.WriteString("\n")
	}

	return str.String()
}

func init() {
	rootCmd.AddCommand(GetWatchCmd())
}
