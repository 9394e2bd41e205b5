package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/soliddaw/daw"
	"github.com/soliddaw/daw/editor"
	"github.com/soliddaw/daw/version"
)

var (
	verbose bool
	log     = logrus.New()
)

var rootCmd = &cobra.Command{
	Use:   "daw",
	Short: "Timeline projects from the command line",
	Long: `daw plays, renders, converts and serves timeline projects.

Projects are read from native .json or .yml files, JMON (.jmon) or Standard
MIDI Files (.mid); the format is chosen from the file name.`,
	Version: version.VersionOrHash,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			log.SetLevel(logrus.DebugLevel)
		}
	},
	SilenceUsage: true,
}

// Execute runs the command line and exits on error.
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func init() {
	log.SetLevel(logrus.InfoLevel)
	log.SetOutput(os.Stderr)
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "log debug messages")
}

func readProject(path string) (daw.Project, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return daw.Project{}, fmt.Errorf("could not read file %v: %w", path, err)
	}
	p, err := editor.ReadProjectFile(path, b)
	if err != nil {
		return daw.Project{}, fmt.Errorf("could not load project %v: %w", path, err)
	}
	return p, nil
}
