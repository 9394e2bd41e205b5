package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/soliddaw/daw"
	"github.com/soliddaw/daw/editor"
)

var (
	renderDirectory string
	renderPCM16     bool
	renderSeconds   float64
	renderStdout    bool
)

var renderCmd = &cobra.Command{
	Use:   "render FILE...",
	Short: "Render projects to .wav files",
	Long: `Render each project offline and write it as a .wav file named after the
project file. By default the render lasts until the end of the last clip plus
a short tail for releases.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, path := range args {
			if err := renderFile(path); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	renderCmd.Flags().StringVarP(&renderDirectory, "output", "o", "", "directory where to write the files; created if needed. Defaults to the working directory.")
	renderCmd.Flags().BoolVarP(&renderPCM16, "pcm", "c", false, "write 16-bit signed PCM instead of 32-bit float")
	renderCmd.Flags().Float64VarP(&renderSeconds, "seconds", "t", 0, "length of the render in seconds; 0 renders the whole project")
	renderCmd.Flags().BoolVarP(&renderStdout, "stdout", "s", false, "write to standard output instead of files")
	rootCmd.AddCommand(renderCmd)
}

func renderFile(path string) error {
	p, err := readProject(path)
	if err != nil {
		return err
	}
	seconds := renderSeconds
	if seconds <= 0 {
		seconds = editor.RenderLength(p)
	}
	entry := log.WithField("file", path).WithField("seconds", seconds)
	entry.Info("rendering")
	lastPercent := -1
	buf, err := editor.Render(p, seconds, log, func(progress float32) {
		if percent := int(progress * 100); percent/10 != lastPercent/10 {
			lastPercent = percent
			entry.WithField("progress", percent).Debug("rendering")
		}
	})
	if err != nil {
		return fmt.Errorf("could not render %v: %w", path, err)
	}
	var wav bytes.Buffer
	if err := daw.WriteWav(&wav, buf, renderPCM16); err != nil {
		return fmt.Errorf("could not encode %v: %w", path, err)
	}
	if renderStdout {
		_, err := os.Stdout.Write(wav.Bytes())
		return err
	}
	return output(renderDirectory, path, ".wav", wav.Bytes())
}

// output writes contents next to a file named like input but with the given
// extension, in dir or the working directory.
func output(dir, input, extension string, contents []byte) error {
	if dir == "" {
		var err error
		if dir, err = os.Getwd(); err != nil {
			return fmt.Errorf("could not get working directory, specify the output directory explicitly: %v", err)
		}
	}
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return fmt.Errorf("could not create output directory %v: %v", dir, err)
	}
	_, name := filepath.Split(input)
	name = strings.TrimSuffix(name, filepath.Ext(name)) + extension
	f := filepath.Join(dir, name)
	if err := os.WriteFile(f, contents, 0o644); err != nil {
		return fmt.Errorf("could not write file %v: %v", f, err)
	}
	log.WithField("file", f).Info("written")
	return nil
}
