package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"waitroom/internal/api"
	"waitroom/internal/client"
	"waitroom/internal/config"
	"waitroom/internal/engine"
	"waitroom/internal/errors"
	"waitroom/internal/log"
	"waitroom/internal/render"
	"waitroom/internal/store"
	"waitroom/internal/tui"
	"waitroom/internal/tui/styles"
	"waitroom/internal/watch"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

// displaySource is where the engine reads documents and keeps its cursor.
type displaySource interface {
	engine.Source
	engine.CursorStore
}

// NewDisplayCmd creates the screen command
func NewDisplayCmd() *cobra.Command {
	var (
		remote string
		manual bool
		plain  bool
	)

	cmd := &cobra.Command{
		Use:   "display",
		Short: "Run the waiting-room screen",
		Long: `Run the waiting-room screen. Documents are read from the local data
directory, or from a gateway with --remote, and the screen follows their
changes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if remote != "" {
				cfg.Display.Source = config.SourceRemote
				cfg.Display.ServerURL = remote
			}
			if manual {
				cfg.Display.ManualAdvance = true
			}
			if plain {
				cfg.Display.Renderer = config.RendererPlain
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			opts := engine.Options{
				PollInterval:  time.Duration(cfg.Display.PollInterval) * time.Second,
				FetchTimeout:  time.Duration(cfg.Display.FetchTimeout) * time.Second,
				ManualAdvance: cfg.Display.ManualAdvance,
			}

			src, follow, err := openDisplaySource()
			if err != nil {
				return err
			}

			if cfg.Display.Renderer == config.RendererPlain {
				r := render.NewPlainRenderer(cmd.OutOrStdout(), newScreen())
				eng := engine.New(src, src, r, opts)
				defer eng.Destroy()
				if err := eng.Init(ctx); err != nil {
					return err
				}
				go follow(ctx, eng)
				<-ctx.Done()
				return nil
			}

			// The full-screen view owns the terminal; logs go to the log file only
			log.Configure(logOptions(log.WithOutput(io.Discard))...)
			styles.Apply(palette())
			r := tui.NewRenderer()
			eng := engine.New(src, src, r, opts)
			m := tui.New(newScreen(), eng, tui.Options{
				Fade: time.Duration(cfg.Display.FadeMillis) * time.Millisecond,
				Start: func() error {
					if err := eng.Init(ctx); err != nil {
						return err
					}
					go follow(ctx, eng)
					return nil
				},
			})
			p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
			r.Attach(p)

			_, err = p.Run()
			// Destroy only after the program has stopped reading messages
			eng.Destroy()
			if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&remote, "remote", "r", "", "read documents from the gateway at this URL")
	cmd.Flags().BoolVarP(&manual, "manual", "m", false, "advance only on key presses")
	cmd.Flags().BoolVar(&plain, "plain", false, "write plain frames instead of the full-screen view")
	return cmd
}

// openDisplaySource returns the configured document source and a function
// that feeds its change notifications into the engine until ctx is done.
func openDisplaySource() (displaySource, func(context.Context, *engine.Engine), error) {
	if cfg.Display.Source == config.SourceRemote {
		c, err := client.New(cfg.Display.ServerURL,
			client.WithTimeout(time.Duration(cfg.Display.FetchTimeout)*time.Second))
		if err != nil {
			return nil, nil, err
		}
		return c, func(ctx context.Context, eng *engine.Engine) {
			c.Subscribe(ctx, func(ev api.Event) {
				if ev.Type == api.EventReload {
					if err := eng.Reload(); err != nil {
						log.LogWithError(err).Warn("Reload request failed")
					}
					return
				}
				eng.Nudge()
			})
		}, nil
	}

	st, err := openStore()
	if err != nil {
		return nil, nil, err
	}
	return st, func(ctx context.Context, eng *engine.Engine) {
		if cfg.Watch.Disabled {
			return
		}
		daemon := watch.NewDaemon(st.Dir(), time.Duration(cfg.Watch.Debounce)*time.Millisecond, store.ContentsDir)
		daemon.SetCallback(func(string) { eng.Nudge() })
		if err := daemon.Start(); err != nil {
			log.LogWithError(err).Warn("File watching unavailable, falling back to polling")
			return
		}
		<-ctx.Done()
		daemon.Stop()
	}, nil
}
