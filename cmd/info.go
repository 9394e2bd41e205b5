package cmd

import (
	"embed"
	"fmt"
	"io"
	"os"
	"text/template"

	"github.com/Masterminds/sprig"
	"github.com/spf13/cobra"

	"github.com/soliddaw/daw"
)

//go:embed templates/*.txt
var templateFS embed.FS

var infoTemplate string

var infoCmd = &cobra.Command{
	Use:   "info FILE...",
	Short: "Summarize projects",
	Long: `Print the tempo, meter, length and tracks of each project. The summary is a
text/template with the sprig functions available; --template replaces the
built-in one.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tmpl, err := newInfoTemplate(infoTemplate)
		if err != nil {
			return err
		}
		for _, path := range args {
			p, err := readProject(path)
			if err != nil {
				return err
			}
			if err := writeInfo(os.Stdout, tmpl, p); err != nil {
				return err
			}
			fmt.Fprintln(os.Stdout)
		}
		return nil
	},
}

func init() {
	infoCmd.Flags().StringVar(&infoTemplate, "template", "", "file with a custom text/template for the summary")
	rootCmd.AddCommand(infoCmd)
}

// projectInfo is the data of the summary template.
type projectInfo struct {
	daw.Project
	End     float64 // beats
	Seconds float64
}

func newInfoTemplate(path string) (*template.Template, error) {
	base := template.New("info.txt").Funcs(sprig.TxtFuncMap()).Funcs(template.FuncMap{
		"bbt": func(p daw.Project, beats float64) string {
			return daw.BeatsToBarsBeatsTicks(beats, p.TimeSignature.BeatsPerBar(), daw.TicksPerBeat).String()
		},
		"kind": func(t daw.Track) string {
			if t.Instrument == nil {
				return string(t.Type)
			}
			return t.Instrument.Kind.DisplayName()
		},
		"notes": func(t daw.Track) int {
			n := 0
			for _, c := range t.Clips {
				n += len(c.Content.Notes)
			}
			return n
		},
	})
	if path == "" {
		tmpl, err := base.ParseFS(templateFS, "templates/info.txt")
		if err != nil {
			return nil, fmt.Errorf("could not create template: %v", err)
		}
		return tmpl, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read template %v: %v", path, err)
	}
	tmpl, err := base.Parse(string(b))
	if err != nil {
		return nil, fmt.Errorf("could not parse template %v: %v", path, err)
	}
	return tmpl, nil
}

func writeInfo(w io.Writer, tmpl *template.Template, p daw.Project) error {
	end, _ := p.ContentEnd()
	info := projectInfo{
		Project: p,
		End:     end,
		Seconds: daw.BeatsToSeconds(end, p.Tempo),
	}
	if err := tmpl.Execute(w, info); err != nil {
		return fmt.Errorf("could not execute template: %v", err)
	}
	return nil
}
