package main

import (
	"fmt"
	"log"
	"strings"

	"github.com/skip2/go-qrcode"
	"github.com/spf13/cobra"
)

const (
	FlagOutput = "output"
	FlagSize   = "size"
)

// GetShareCmd returns the list share code command: the QR payload is the bare list id.
func GetShareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "share [listId]",
		Short: "Print the list join QR code",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			// Parse inputs
			output, err := cmd.Flags().GetString(FlagOutput)
			if err != nil {
				log.Fatalf("%s flag: %v", FlagOutput, err)
			}
			size, err := cmd.Flags().GetInt(FlagSize)
			if err != nil {
				log.Fatalf("%s flag: %v", FlagSize, err)
			}
			code := strings.TrimSpace(args[0])

			// Work
			if output != "" {
				if err := qrcode.WriteFile(code, qrcode.Medium, size, output); err != nil {
					log.Fatalf("QR code write: %v", err)
				}
				fmt.Printf("QR code saved to %s\n", output)
				return
			}

			qr, err := qrcode.New(code, qrcode.Medium)
			if err != nil {
				log.Fatalf("QR code build: %v", err)
			}
			fmt.Print(renderQR(qr.Bitmap()))
			fmt.Printf("Join code: %s\n", code)
		},
	}
	cmd.Flags().String(FlagOutput, "", "(optional) PNG file path (terminal output if empty)")
	cmd.Flags().Int(FlagSize, 256, "(optional) PNG size in pixels")

	return cmd
}

// renderQR draws the bitmap with half block characters: two modules rows per text line.
func renderQR(bitmap [][]bool) string {
	str := strings.Builder{}
	for y := 0; y < len(bitmap); y += 2 {
		for x := range bitmap[y] {
			top := bitmap[y][x]
			bottom := y+1 < len(bitmap) && bitmap[y+1][x]
			switch {
			case top && bottom:
				str.WriteString(" ")
			case top:
				str.WriteString("▄")
			case bottom:
				str.WriteString("▀")
			default:
				str.WriteString("█")
			}
		}
		str.WriteString("\n")
	}

	return str.String()
}

func init() {
	rootCmd.AddCommand(GetShareCmd())
}
