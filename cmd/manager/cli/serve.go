package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/deploykit/manager/internal/query"
	"github.com/deploykit/manager/internal/server"
)

func newServeCmd() *cobra.Command {
	var (
		port int
		host string
		dev  bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the manager API server",
		Long:  "Start the HTTP server that exposes the deployment manager REST API.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(dev)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8100, "HTTP listen port")
	cmd.Flags().StringVar(&host, "host", "0.0.0.0", "HTTP listen host")
	cmd.Flags().BoolVar(&dev, "dev", false, "Enable development mode (debug logging)")

	viper.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", cmd.Flags().Lookup("host"))

	return cmd
}

func runServe(dev bool) error {
	cfg, baseDir, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Logging, dev)

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	logger.Info("resource store opened", "driver", store.Driver())

	sec, err := buildSecurity(cfg, baseDir, logger)
	if err != nil {
		store.Close()
		return err
	}
	if !sec.Enabled() {
		logger.Warn("security is disabled; every request is served anonymously")
	}

	srvCfg := server.ConfigFromYAML(cfg)
	srvCfg.Version = versionString()
	srv := server.New(srvCfg, store, sec, query.NewEngine(query.DefaultVersionPolicy), logger)

	fmt.Printf("  manager %s listening on http://%s:%d\n", versionString(), srvCfg.Host, srvCfg.Port)
	fmt.Printf("  OpenAPI document at http://%s:%d/openapi.json\n\n", srvCfg.Host, srvCfg.Port)

	// ListenAndServe closes the store on shutdown.
	return srv.ListenAndServe()
}
