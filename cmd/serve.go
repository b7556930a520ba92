package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/smartstudy-abroad/smartstudy/internal/chat"
	"github.com/smartstudy-abroad/smartstudy/internal/fallback"
	"github.com/smartstudy-abroad/smartstudy/internal/logger"
	"github.com/smartstudy-abroad/smartstudy/internal/matching"
	"github.com/smartstudy-abroad/smartstudy/internal/search"
	"github.com/smartstudy-abroad/smartstudy/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	Run: func(cmd *cobra.Command, _ []string) {
		serve(cmd)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("addr", "a", "", "listen address, overrides server.addr")
	viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
}

func serve(_ *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	defer logger.Sync()

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the smartstudy backend", zap.String("version", version))

	pretty, _ := json.MarshalIndent(redacted(config), "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	b := &backends{}
	defer b.Close(logger)

	b.store, err = openStore(ctx, config.Store, logger)
	if err != nil {
		logger.Fatal("opening the store", zap.Error(err))
	}

	b.generator, b.embedder, err = newAI(ctx, config.AI, logger)
	if err != nil {
		logger.Fatal("creating the ai backend", zap.Error(err))
	}

	sim, err := newSimilarity(ctx, config, b, logger)
	if err != nil {
		logger.Fatal("creating the similarity backend", zap.Error(err))
	}

	policy, err := matching.ParseOmittedPolicy(config.Matching.OmittedCriteria)
	if err != nil {
		logger.Fatal("parsing matching config", zap.Error(err))
	}

	gateway := fallback.New(b.store, b.generator, fallback.Options{
		Timeout:      config.AI.Timeout,
		SingleFlight: config.AI.SingleFlight,
		MaxLogLength: config.AI.Gemini.MaxLogLength,
	}, logger.Named("fallback"))

	searcher := search.New(b.store, gateway, logger.Named("search"))
	matcher := matching.NewMatcher(b.store, sim, matching.Options{
		Policy:               policy,
		ExcludedUniversities: config.Matching.ExcludedUniversities,
	}, logger.Named("matching"))
	assistant := chat.New(b.generator, config.AI.Timeout, logger.Named("chat"))

	srv := server.New(searcher, matcher, assistant, server.Options{
		Addr:            config.Server.Addr,
		ReadTimeout:     config.Server.ReadTimeout,
		WriteTimeout:    config.Server.WriteTimeout,
		ShutdownTimeout: config.Server.ShutdownTimeout,
		MaxBodyBytes:    config.Server.MaxBodyBytes,
		DefaultTopK:     config.Matching.DefaultTopK,
	}, logger.Named("http"))

	if err := srv.Run(ctx); err != nil {
		logger.Error("http server stopped", zap.Error(err))
		return
	}
	logger.Info("exiting", zap.String("reason", "shutdown requested"))
}

// redacted returns a copy of config that is safe to log.
func redacted(config *Config) Config {
	out := *config
	if config.AI != nil && config.AI.Gemini != nil {
		ai := *config.AI
		gem := *config.AI.Gemini
		if gem.APIKey != "" {
			gem.APIKey = "***"
		}
		ai.Gemini = &gem
		out.AI = &ai
	}
	if config.Store != nil && config.Store.DatabaseURL != "" {
		st := *config.Store
		st.DatabaseURL = "***"
		out.Store = &st
	}
	if config.Redis != nil && config.Redis.URL != "" {
		rd := *config.Redis
		rd.URL = "***"
		out.Redis = &rd
	}
	return out
}
