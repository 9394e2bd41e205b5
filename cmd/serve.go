package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/soliddaw/daw"
	"github.com/soliddaw/daw/editor"
	"github.com/soliddaw/daw/engine"
	"github.com/soliddaw/daw/oto"
)

var (
	serveAddr          string
	serveOrigins       []string
	serveAudio         bool
	serveRecoveryDelay time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve [FILE]",
	Short: "Serve a project over HTTP",
	Long: `Serve an editor model over HTTP, playing through the default audio device.
Without FILE, the project is restored from the recovery file, where changes
are saved once they have settled.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		recoveryFile := ""
		if configDir, err := os.UserConfigDir(); err == nil {
			recoveryFile = filepath.Join(configDir, editor.ConfigDirName, "serve-recovery")
		}
		var e daw.SoundEngine
		if serveAudio {
			eng := engine.New(oto.Open, log)
			defer eng.Dispose()
			e = eng
		}
		broker := editor.NewBroker()
		m := editor.NewModel(broker, e, log, recoveryFile)
		if bindings, err := editor.LoadCustomKeyBindings(); err != nil {
			log.WithError(err).Warn("could not read custom key bindings")
		} else {
			m.BindKeys(bindings)
		}
		if len(args) > 0 {
			p, err := readProject(args[0])
			if err != nil {
				return err
			}
			m.SetProject(p)
			m.History().ClearUndoHistory().Do()
		} else if b, err := os.ReadFile(recoveryFile); err == nil {
			m.History().UnmarshalRecovery(b)
			log.WithField("file", recoveryFile).Info("restored recovery file")
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		s := NewServer(m, broker, log, serveRecoveryDelay)
		go s.Run(ctx)
		srv := &http.Server{Addr: serveAddr, Handler: s.Handler(serveOrigins)}
		go func() {
			<-ctx.Done()
			shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdown)
		}()
		log.WithField("addr", serveAddr).Info("serving")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		s.writeRecovery()
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVarP(&serveAddr, "addr", "a", ":10000", "address to listen on")
	serveCmd.Flags().StringSliceVar(&serveOrigins, "origin", []string{"*"}, "origins allowed to make cross-origin requests")
	serveCmd.Flags().BoolVar(&serveAudio, "audio", true, "play through the default audio device; without it playback is disabled")
	serveCmd.Flags().DurationVar(&serveRecoveryDelay, "recovery-delay", 2*time.Second, "how long changes settle before they are saved to the recovery file")
	rootCmd.AddCommand(serveCmd)
}
