package main

import (
	"strconv"
	"strings"
	"time"

	"waitroom/internal/client"
	"waitroom/internal/engine"
	"waitroom/internal/store"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// NewInitCmd creates the data directory scaffold command
func NewInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the data directory with defaults and sample content",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			created, err := st.Scaffold(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(created) == 0 {
				printf(out, "%s\n", infoText("Data directory "+st.Dir()+" is already set up"))
				return nil
			}
			for _, name := range created {
				printf(out, "  + %s\n", name)
			}
			printf(out, "%s\n", successText("Initialized "+st.Dir()))
			return nil
		},
	}
}

// NewPlaylistCmd creates the playlist command group
func NewPlaylistCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "playlist",
		Short: "Manage the playlist",
	}
	cmd.AddCommand(newPlaylistSetCmd())
	cmd.AddCommand(newPlaylistShowCmd())
	cmd.AddCommand(newPlaylistFilesCmd())
	cmd.AddCommand(newPlaylistClearCmd())
	cmd.AddCommand(newPlaylistReloadCmd())
	return cmd
}

func newPlaylistSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <letters|filenames|globs>...",
		Short: "Replace the playlist",
		Long: `Replace the playlist. Tokens are shortcut letters (see 'playlist files'),
filenames with or without .json, or glob patterns such as "news_*".
Tokens may be given as separate arguments or as one comma-separated list.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			pl, err := st.SavePlaylist(cmd.Context(), strings.Join(args, ","))
			if err != nil {
				return err
			}
			printPlaylist(cmd, pl)
			printf(cmd.OutOrStdout(), "%s\n", successText("Playlist saved"))
			return nil
		},
	}
}

func newPlaylistShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the playlist and its cursor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			pl, err := st.Playlist(cmd.Context())
			if err != nil {
				return err
			}
			if !pl.Active() {
				printf(cmd.OutOrStdout(), "%s\n", infoText("No playlist, all enabled content is shown"))
				return nil
			}
			printPlaylist(cmd, pl)
			return nil
		},
	}
}

func printPlaylist(cmd *cobra.Command, pl engine.PlaylistStatus) {
	out := cmd.OutOrStdout()
	printf(out, "%s\n", headerText("Playlist "+pl.PlaylistString))
	for i, e := range pl.Playlist {
		marker := " "
		if i == pl.PlaylistIndex {
			marker = "▶"
		}
		printf(out, "%s %2d. %-30s %3d items\n", marker, i+1, e.DisplayName+" ("+e.Filename+")", e.ItemCount)
	}
	printf(out, "%d files, %d items\n", pl.TotalFiles, pl.TotalItems)
}

func newPlaylistFilesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "files",
		Short: "List content files with their shortcut letters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			files, err := st.ListFiles(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, f := range files {
				printf(out, "[%s] %-30s %-10s %3d items\n", f.Shortcut, f.Filename, f.DisplayMode, f.ItemCount)
			}
			return nil
		},
	}
}

func newPlaylistClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove the playlist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			if err := st.ClearPlaylist(cmd.Context()); err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "%s\n", successText("Playlist cleared"))
			return nil
		},
	}
}

func newPlaylistReloadCmd() *cobra.Command {
	var server string

	cmd := &cobra.Command{
		Use:   "reload",
		Short: "Ask every connected display to rebuild its plan",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if server == "" {
				server = cfg.Display.ServerURL
			}
			c, err := client.New(server, client.WithTimeout(time.Duration(cfg.Display.FetchTimeout)*time.Second))
			if err != nil {
				return err
			}
			n, err := c.Reload(cmd.Context())
			if err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "%s\n", successText("Reload sent to "+strconv.Itoa(n)+" display(s)"))
			return nil
		},
	}
	cmd.Flags().StringVarP(&server, "server", "s", "", "gateway URL (default from config display.server_url)")
	return cmd
}

// NewStatusCmd creates the status overlay command group
func NewStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Manage the queue and announcement overlay",
	}
	cmd.AddCommand(newStatusRoomsCmd())
	cmd.AddCommand(newStatusMessageCmd())
	cmd.AddCommand(newStatusHideCmd())
	cmd.AddCommand(newStatusShowCmd())
	return cmd
}

func newStatusRoomsCmd() *cobra.Command {
	var label1, label2 string

	cmd := &cobra.Command{
		Use:   "rooms <room1> [room2]",
		Short: "Show the numbers being served; 0 hides a room",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			u := store.StatusUpdate{Mode: engine.StatusRooms}
			labels := []string{label1, label2}
			for i, arg := range args {
				n, err := strconv.Atoi(arg)
				if err != nil {
					return err
				}
				room := &engine.Room{Label: labels[i], Number: n, Visible: n > 0}
				if i == 0 {
					u.Room1 = room
				} else {
					u.Room2 = room
				}
			}
			return saveStatus(cmd, u)
		},
	}
	cmd.Flags().StringVar(&label1, "label1", "", "label for room 1")
	cmd.Flags().StringVar(&label2, "label2", "", "label for room 2")
	return cmd
}

func newStatusMessageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "message <text>",
		Short: "Replace the queue numbers with an announcement",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return saveStatus(cmd, store.StatusUpdate{
				Mode:          engine.StatusMessage,
				StatusMessage: &store.MessageUpdate{Text: strings.Join(args, " ")},
			})
		},
	}
}

func newStatusHideCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hide",
		Short: "Hide the overlay",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return saveStatus(cmd, store.StatusUpdate{Mode: engine.StatusHidden})
		},
	}
}

func saveStatus(cmd *cobra.Command, u store.StatusUpdate) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	status, err := st.SaveStatus(cmd.Context(), u)
	if err != nil {
		return err
	}
	printf(cmd.OutOrStdout(), "%s\n", successText("Status set to "+string(status.Mode)))
	return nil
}

func newStatusShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the stored overlay",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			status, err := st.Status(cmd.Context())
			if err != nil {
				return err
			}
			return printYAML(cmd, status)
		},
	}
}

// NewMessageCmd creates the banner command group
func NewMessageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "message",
		Short: "Manage the free-text banner",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "set <text>",
		Short: "Show a banner message",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return saveMessage(cmd, func(engine.Message) (string, bool) {
				return strings.Join(args, " "), true
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "hide",
		Short: "Hide the banner and keep its text",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return saveMessage(cmd, func(m engine.Message) (string, bool) {
				return m.Text, false
			})
		},
	})
	return cmd
}

func saveMessage(cmd *cobra.Command, next func(engine.Message) (string, bool)) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	current, err := st.Message(cmd.Context())
	if err != nil {
		return err
	}
	text, visible := next(current)
	m, err := st.SaveMessage(cmd.Context(), text, visible)
	if err != nil {
		return err
	}
	if m.Visible {
		printf(cmd.OutOrStdout(), "%s\n", successText("Banner: "+m.Text))
	} else {
		printf(cmd.OutOrStdout(), "%s\n", successText("Banner hidden"))
	}
	return nil
}

// NewSettingsCmd creates the settings command group
func NewSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change the rotation settings",
	}
	cmd.AddCommand(newSettingsShowCmd())
	cmd.AddCommand(newSettingsSetCmd())
	return cmd
}

func newSettingsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the stored settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			settings, err := st.Settings(cmd.Context())
			if err != nil {
				return err
			}
			return printYAML(cmd, settings)
		},
	}
}

func newSettingsSetCmd() *cobra.Command {
	var (
		interval    int
		duration    int
		showTips    bool
		messageMode string
	)

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change rotation settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var p store.SettingsPatch
			flags := cmd.Flags()
			if flags.Changed("interval") {
				p.Interval = &interval
			}
			if flags.Changed("duration") {
				p.Duration = &duration
			}
			if flags.Changed("show-tips") {
				p.ShowTips = &showTips
			}
			if flags.Changed("message-mode") {
				p.MessageMode = &messageMode
			}

			st, err := openStore()
			if err != nil {
				return err
			}
			settings, err := st.SaveSettings(cmd.Context(), p)
			if err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "%s\n", successText("Settings saved"))
			return printYAML(cmd, settings)
		},
	}

	cmd.Flags().IntVarP(&interval, "interval", "i", 0, "seconds between items")
	cmd.Flags().IntVarP(&duration, "duration", "d", 0, "seconds an item stays visible")
	cmd.Flags().BoolVar(&showTips, "show-tips", true, "show the rotating items")
	cmd.Flags().StringVar(&messageMode, "message-mode", "", "banner mode: always or sync")
	return cmd
}

// NewContentCmd creates the content command group
func NewContentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "content",
		Short: "Inspect content files and sequence progress",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "mode <file> <random|order|sequence>",
		Short: "Set how a file's items are played",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			if err := st.SaveDisplayMode(cmd.Context(), args[0], engine.DisplayMode(args[1])); err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "%s\n", successText(args[0]+" now plays in "+args[1]+" mode"))
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Summarize content, playlist and sequence progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			ds, err := st.DisplayStatus(cmd.Context())
			if err != nil {
				return err
			}
			return printYAML(cmd, ds)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Rewind every sequence file to its first item",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			reset, err := st.ResetSequence(cmd.Context())
			if err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "%s\n", successText("Reset "+strconv.Itoa(len(reset))+" file(s)"))
			return nil
		},
	})
	return cmd
}

func printYAML(cmd *cobra.Command, v interface{}) error {
	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(v)
}
