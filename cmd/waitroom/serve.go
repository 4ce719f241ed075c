package main

import (
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"waitroom/internal/api"
	"waitroom/internal/log"
	"waitroom/internal/store"
	"waitroom/internal/watch"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// NewServeCmd creates the gateway command
func NewServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the control API and change notifications",
		Long: `Serve the JSON control API over the data directory and push a
notification to every connected display when a document changes, whether
through the API or by editing the files directly.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			st, err := openStore()
			if err != nil {
				return err
			}
			srv := api.NewServer(st, api.NewHub())

			if addr == "" {
				addr = net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
			}
			shutdown := time.Duration(cfg.Server.ShutdownTimeout) * time.Second

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return srv.ListenAndServe(gctx, addr, shutdown)
			})

			if cfg.Watch.Disabled {
				log.Info("File watching disabled, displays rely on polling for direct edits")
			} else {
				daemon := watch.NewDaemon(st.Dir(), time.Duration(cfg.Watch.Debounce)*time.Millisecond, store.ContentsDir)
				daemon.SetCallback(srv.Notify)
				if err := daemon.Start(); err != nil {
					stop()
					g.Wait()
					return err
				}
				g.Go(func() error {
					<-gctx.Done()
					daemon.Stop()
					return nil
				})
			}

			printf(cmd.OutOrStdout(), "%s\n", infoText("Gateway listening on http://"+addr))
			return g.Wait()
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "listen address (default from config server.host:server.port)")
	return cmd
}
