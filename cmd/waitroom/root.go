package main

import (
	"fmt"
	"io"

	"waitroom/internal/config"
	"waitroom/internal/log"
	"waitroom/internal/render"
	"waitroom/internal/store"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	dataDir string
	debug   bool
	cfg     *config.Config
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "waitroom",
		Short: "Clinic waiting-room signage",
		Long: `waitroom drives the waiting-room screen of a clinic: rotating tips,
queue numbers, announcements and the free-text banner.

Run 'waitroom serve' on the reception PC and 'waitroom display' on the
screen. The remaining commands edit the shared data directory.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadEnv(".env"); err != nil {
				return err
			}

			var err error
			if cfgFile != "" {
				cfg, err = config.LoadConfigFile(cfgFile)
			} else {
				cfg, err = config.LoadConfig()
			}
			if err != nil {
				return err
			}
			if dataDir != "" {
				cfg.DataDir = dataDir
			}
			if debug {
				cfg.Log.Debug = true
			}

			log.Configure(logOptions()...)
			log.SetDebug(cfg.Log.Debug)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/waitroom/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory (overrides the config file)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(NewServeCmd())
	rootCmd.AddCommand(NewDisplayCmd())
	rootCmd.AddCommand(NewInitCmd())
	rootCmd.AddCommand(NewPlaylistCmd())
	rootCmd.AddCommand(NewStatusCmd())
	rootCmd.AddCommand(NewMessageCmd())
	rootCmd.AddCommand(NewSettingsCmd())
	rootCmd.AddCommand(NewContentCmd())

	return rootCmd
}

func logOptions(extra ...log.Option) []log.Option {
	opts := extra
	if cfg.Log.JSON {
		opts = append(opts, log.WithJSON())
	}
	if cfg.Log.File != "" {
		opts = append(opts, log.WithFile(cfg.Log.File))
	}
	return opts
}

// openStore returns the store for the configured data directory.
func openStore() (*store.FileStore, error) {
	st := store.New(cfg.DataDir)
	if err := st.Init(); err != nil {
		return nil, err
	}
	return st, nil
}

func palette() render.Palette {
	return render.Palette{
		Primary:  cfg.Theme.Primary,
		Success:  cfg.Theme.Success,
		Warning:  cfg.Theme.Warning,
		Error:    cfg.Theme.Error,
		Info:     cfg.Theme.Info,
		Emphasis: cfg.Theme.Emphasis,
		Border:   cfg.Theme.Border,
	}
}

func newScreen() render.Screen {
	layout := render.Options{
		SingleLineMax: cfg.Layout.SingleLineMax,
		BreakWindow:   cfg.Layout.BreakWindow,
		MinFont:       cfg.Layout.MinFont,
		MaxFont:       cfg.Layout.MaxFont,
	}
	box := render.Box{Width: cfg.Layout.Width, Height: cfg.Layout.Height}
	return render.NewScreen(palette(), layout, box)
}

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#73F59F"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F")).Bold(true)
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#5AA9E6"))
	headerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#7B61FF")).Bold(true)
)

func successText(s string) string { return successStyle.Render("✅ " + s) }
func errorText(s string) string   { return errorStyle.Render("❌ " + s) }
func infoText(s string) string    { return infoStyle.Render(s) }
func headerText(s string) string  { return headerStyle.Render(s) }

func printf(w io.Writer, format string, args ...interface{}) {
	fmt.Fprintf(w, format, args...)
}
