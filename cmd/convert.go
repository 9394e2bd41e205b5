package cmd

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/soliddaw/daw/editor"
)

var (
	convertFormat    string
	convertDirectory string
)

var convertCmd = &cobra.Command{
	Use:   "convert FILE...",
	Short: "Convert projects between formats",
	Long: `Convert projects between the native formats (yml, json), JMON (jmon) and
Standard MIDI Files (mid). Audio clips do not survive conversion to jmon or mid.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ext := "." + strings.TrimPrefix(strings.ToLower(convertFormat), ".")
		switch ext {
		case ".yml", ".yaml", ".json", ".jmon", ".mid", ".midi":
		default:
			return fmt.Errorf("unknown format %q", convertFormat)
		}
		for _, path := range args {
			p, err := readProject(path)
			if err != nil {
				return err
			}
			var buf bytes.Buffer
			if err := editor.WriteProjectFile(ext, &buf, p); err != nil {
				return fmt.Errorf("could not convert %v: %w", path, err)
			}
			if convertDirectory == "-" {
				if _, err := os.Stdout.Write(buf.Bytes()); err != nil {
					return err
				}
				continue
			}
			if err := output(convertDirectory, path, ext, buf.Bytes()); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	convertCmd.Flags().StringVarP(&convertFormat, "to", "f", "yml", "output format: yml, json, jmon or mid")
	convertCmd.Flags().StringVarP(&convertDirectory, "output", "o", "", "directory where to write the files, or - for standard output")
	rootCmd.AddCommand(convertCmd)
}
