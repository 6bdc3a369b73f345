package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/programme-advisor/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the extraction and recommendation pipeline over HTTP",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("listen", "l", "", "address to listen on (default is server.listen)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d, err := setup(ctx, true)
	if err != nil {
		return err
	}
	defer d.close()

	cfg := server.Config{}
	metricsEnabled := true
	if sc := d.config.Server; sc != nil {
		cfg.Listen = sc.Listen
		cfg.MaxUploadBytes = sc.MaxUploadBytes
		metricsEnabled = sc.Metrics
	}
	if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
		cfg.Listen = listen
	}

	deps := server.Deps{
		Pipeline:  d.pipeline,
		Catalogue: d.resolver,
	}
	if metricsEnabled {
		deps.Gatherer = d.registry
	}

	sink, closeSink, err := openSink(d.config)
	if err != nil {
		return err
	}
	defer closeSink()
	if sink != nil {
		deps.Sink = sink
	}

	if err := server.New(cfg, deps, d.logger.With(zap.String("component", "server"))).Run(ctx); err != nil {
		d.logger.Error("server stopped", zap.Error(err))
		return err
	}

	d.logger.Info("server stopped")
	return nil
}
