package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/soliddaw/daw"
	"github.com/soliddaw/daw/editor"
	"github.com/soliddaw/daw/engine"
	"github.com/soliddaw/daw/oto"
)

var (
	playLoop  bool
	playFrom  string
	playTempo float64
	playQuiet bool
)

var playCmd = &cobra.Command{
	Use:   "play FILE",
	Short: "Play a project through the default audio device",
	Long: `Play a project until its last clip has ended, or until interrupted. With
--loop, playback repeats the loop region inferred from the clips.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := readProject(args[0])
		if err != nil {
			return err
		}
		e := engine.New(oto.Open, log)
		defer e.Dispose()
		broker := editor.NewBroker()
		m := editor.NewModel(broker, e, log, "")
		m.SetProject(p)
		if playTempo > 0 {
			m.Transport().Tempo().SetValue(playTempo)
		}
		if playFrom != "" {
			bbt, err := daw.ParseBarsBeatsTicks(playFrom)
			if err != nil {
				return err
			}
			m.Transport().SetBeats(bbt.Beats(p.TimeSignature.BeatsPerBar(), daw.TicksPerBeat))
		}
		if playLoop {
			m.Transport().IsLooping().SetValue(true)
		}
		m.Transport().Play().Do()
		if !m.Transport().IsPlaying() {
			for a := range m.Alerts().Iterate() {
				return errors.New(a.Message)
			}
			return errors.New("could not start playback")
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		return follow(ctx, m, broker, editor.RenderLength(m.Project()))
	},
}

func init() {
	playCmd.Flags().BoolVarP(&playLoop, "loop", "l", false, "loop the region spanning the clips")
	playCmd.Flags().StringVarP(&playFrom, "from", "f", "", "start position as bars:beats:ticks, e.g. 5:1:000")
	playCmd.Flags().Float64Var(&playTempo, "tempo", 0, "override the project tempo, in BPM")
	playCmd.Flags().BoolVarP(&playQuiet, "quiet", "q", false, "do not print the position")
	rootCmd.AddCommand(playCmd)
}

// follow drains the broker into the model until playback passes end, or ctx
// is done, and then stops the transport.
func follow(ctx context.Context, m *editor.Model, broker *editor.Broker, end float64) error {
	defer m.Transport().Stop().Do()
	last := ""
	for {
		select {
		case <-ctx.Done():
			if !playQuiet {
				fmt.Fprintln(os.Stderr)
			}
			return nil
		case msg := <-broker.ToModel:
			m.ProcessMsg(msg)
		}
		if pos := m.Transport().BarsBeatsTicks().String(); pos != last && !playQuiet {
			fmt.Fprintf(os.Stderr, "\r%s", pos)
			last = pos
		}
		if !m.Transport().IsLooping().Value() && m.Transport().Position() >= end {
			if !playQuiet {
				fmt.Fprintln(os.Stderr)
			}
			return nil
		}
	}
}
