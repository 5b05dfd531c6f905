package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/dshills/asmexplain/internal/server"
)

var flagListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP explanation service",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		extra := map[string]string{}
		if flagListen != "" {
			extra["listen"] = flagListen
		}
		cfg, err := loadConfig(extra)
		if err != nil {
			failConfig(err)
			return nil
		}
		lc, err := newLogger(cfg, nil)
		if err != nil {
			failConfig(err)
			return nil
		}
		defer lc.Close()

		a := newApp(cfg, lc.Logger)
		gin.SetMode(gin.ReleaseMode)
		srv := server.New(server.Options{
			Addr:        cfg.Listen,
			Explainer:   a.service,
			Index:       a.store,
			Gatherer:    a.registry,
			CORSOrigins: cfg.CORSOrigins,
			Logger:      lc.Logger,
		})

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		lc.Info("starting explanation service",
			"listen", cfg.Listen,
			"storage", cfg.StorageDir,
			"provider", cfg.Provider,
			"model", cfg.Model,
		)
		if err := srv.Run(ctx); err != nil {
			fail(err)
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&flagListen, "listen", "", "HTTP listen address (host:port)")
}
