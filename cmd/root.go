package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/sunbk201/prerender/internal/api"
	"github.com/sunbk201/prerender/internal/config"
	"github.com/sunbk201/prerender/internal/log"
	"github.com/sunbk201/prerender/internal/prerender"
	"github.com/sunbk201/prerender/internal/server"
	"github.com/sunbk201/prerender/internal/statistics"
)

var (
	AppVersion    = "Development"
	shutdownChain []func() error
)

var rootCmd = &cobra.Command{
	Use:   "prerender",
	Short: "Prerender is a crawler-aware reverse proxy",
	Long: "Prerender sits in front of a JavaScript application and answers search engine and social crawlers " +
		"with pages rendered by a Prerender service, passing every other request to the origin.",
	RunE:         runRoot,
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	// Short flags
	rootCmd.Flags().StringP("config", "c", "", "Config file path")
	rootCmd.Flags().StringP("bind", "b", "", "Bind address")
	rootCmd.Flags().IntP("port", "p", 0, "Port")
	rootCmd.Flags().StringP("log-level", "l", "", "Log level: debug, info, warn, error")
	rootCmd.Flags().StringP("origin", "o", "", "Origin application URL")
	rootCmd.Flags().StringP("service-url", "s", "", "Prerender service URL")
	rootCmd.Flags().StringP("token", "t", "", "Prerender token")
	rootCmd.Flags().BoolP("version", "v", false, "Show version")
	rootCmd.Flags().BoolP("generate-config", "g", false, "Generate template config file")

	// Long flags
	rootCmd.Flags().String("env-file", ".env", "Dotenv file loaded before reading the environment")
	rootCmd.Flags().String("log-file", "", "Log file path")
	rootCmd.Flags().String("api-server", "", "Admin API listen address")
	rootCmd.Flags().String("api-server-secret", "", "Admin API secret")
	rootCmd.Flags().String("stats-dir", "", "Statistics dump directory")
	rootCmd.Flags().StringSlice("blacklist", nil, "URL/Referer patterns never prerendered")
	rootCmd.Flags().StringSlice("whitelist", nil, "URL patterns eligible for prerendering")
	rootCmd.Flags().StringSlice("crawler-user-agents", nil, "Extra crawler User-Agent substrings")
	rootCmd.Flags().StringSlice("extensions-to-ignore", nil, "Extra static resource extensions")
	rootCmd.Flags().String("proxy-url", "", "Proxy for rendering service requests")
	rootCmd.Flags().Int("proxy-port", 0, "Proxy port")
	rootCmd.Flags().String("base-path", "", "Application base path")
	rootCmd.Flags().Bool("strip-application-name", false, "Strip base path from forwarded URLs")
	rootCmd.Flags().Bool("continue-after-render", false, "Run the origin handler after serving a rendered page")

	// Bind all flags to viper using consistent key names
	_ = viper.BindPFlag("config", rootCmd.Flags().Lookup("config"))
	_ = viper.BindPFlag("env-file", rootCmd.Flags().Lookup("env-file"))
	_ = viper.BindPFlag("bind-address", rootCmd.Flags().Lookup("bind"))
	_ = viper.BindPFlag("port", rootCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("log-level", rootCmd.Flags().Lookup("log-level"))
	_ = viper.BindPFlag("log-file", rootCmd.Flags().Lookup("log-file"))
	_ = viper.BindPFlag("origin", rootCmd.Flags().Lookup("origin"))
	_ = viper.BindPFlag("api-server", rootCmd.Flags().Lookup("api-server"))
	_ = viper.BindPFlag("api-server-secret", rootCmd.Flags().Lookup("api-server-secret"))
	_ = viper.BindPFlag("stats-dir", rootCmd.Flags().Lookup("stats-dir"))
	_ = viper.BindPFlag("prerender.service-url", rootCmd.Flags().Lookup("service-url"))
	_ = viper.BindPFlag("prerender.token", rootCmd.Flags().Lookup("token"))
	_ = viper.BindPFlag("prerender.blacklist", rootCmd.Flags().Lookup("blacklist"))
	_ = viper.BindPFlag("prerender.whitelist", rootCmd.Flags().Lookup("whitelist"))
	_ = viper.BindPFlag("prerender.crawler-user-agents", rootCmd.Flags().Lookup("crawler-user-agents"))
	_ = viper.BindPFlag("prerender.extensions-to-ignore", rootCmd.Flags().Lookup("extensions-to-ignore"))
	_ = viper.BindPFlag("prerender.proxy.url", rootCmd.Flags().Lookup("proxy-url"))
	_ = viper.BindPFlag("prerender.proxy.port", rootCmd.Flags().Lookup("proxy-port"))
	_ = viper.BindPFlag("prerender.base-path", rootCmd.Flags().Lookup("base-path"))
	_ = viper.BindPFlag("prerender.strip-application-name", rootCmd.Flags().Lookup("strip-application-name"))
	_ = viper.BindPFlag("prerender.continue-after-render", rootCmd.Flags().Lookup("continue-after-render"))

	config.BindEnv()
}

func initConfig() {
	if err := config.LoadDotEnv(viper.GetString("env-file")); err != nil {
		slog.Error("Failed to load env file", slog.Any("error", err))
		os.Exit(1)
	}

	configFile := viper.GetString("config")
	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.MergeInConfig(); err != nil {
			slog.Error("Failed to read config file", slog.Any("error", err))
			os.Exit(1)
		}
	}

	config.SetDefaults()
}

func runRoot(cmd *cobra.Command, args []string) error {
	// Handle -v / --version
	showVer, _ := cmd.Flags().GetBool("version")
	if showVer {
		fmt.Printf("prerender version %s\n", AppVersion)
		return nil
	}

	// Handle -g / --generate-config
	genConfig, _ := cmd.Flags().GetBool("generate-config")
	if genConfig {
		_, err := config.GenerateTemplateConfig(true)
		if err != nil {
			return fmt.Errorf("failed to generate template config: %w", err)
		}
		fmt.Println("Template config file 'config.yaml' generated successfully.")
		return nil
	}

	cfg, err := config.BuildConfigFromViper()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	logBroadcaster := log.NewBroadcaster()
	log.SetLogConf(cfg.LogLevel, cfg.LogFile, logBroadcaster)
	log.LogHeader(AppVersion, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	addShutdown("stats.Stop", func() error {
		cancel()
		return nil
	})

	stats := statistics.New(log.GetStatsDir(cfg.StatsDir))
	stats.Run(ctx)

	mw, err := prerender.New(&cfg.Prerender, prerender.WithRecorder(stats))
	if err != nil {
		slog.Error("prerender.New", slog.Any("error", err))
		shutdown()
		return err
	}

	srv, err := server.New(cfg, mw)
	if err != nil {
		slog.Error("server.New", slog.Any("error", err))
		shutdown()
		return err
	}
	addShutdown("srv.Close", srv.Close)
	if err := srv.Start(); err != nil {
		slog.Error("srv.Start", slog.Any("error", err))
		shutdown()
		return err
	}

	if cfg.APIServer != "" {
		apiSrv := api.New(AppVersion, cfg, mw, stats, logBroadcaster)
		addShutdown("api.Close", apiSrv.Close)
		if err := apiSrv.Start(); err != nil {
			slog.Error("api.Start", slog.Any("error", err))
			shutdown()
			return err
		}
	}

	cleanup := make(chan os.Signal, 1)
	signal.Notify(cleanup, syscall.SIGHUP, syscall.SIGQUIT, syscall.SIGINT, syscall.SIGTERM)
	for {
		s := <-cleanup
		slog.Info("Received signal", slog.String("signal", s.String()))
		switch s {
		case syscall.SIGQUIT, syscall.SIGINT, syscall.SIGTERM:
			shutdown()
			return nil
		case syscall.SIGHUP:
		default:
			return nil
		}
	}
}

func addShutdown(name string, fn func() error) {
	shutdownChain = append(shutdownChain, func() error {
		if err := fn(); err != nil {
			slog.Error(name, slog.Any("error", err))
			return err
		}
		return nil
	})
}

// shutdown runs the chain in reverse registration order.
func shutdown() {
	for i := len(shutdownChain) - 1; i >= 0; i-- {
		_ = shutdownChain[i]()
	}
	slog.Info("prerender exit")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
