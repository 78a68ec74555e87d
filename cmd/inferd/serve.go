package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"inferd/internal/config"
	"inferd/internal/httpapi"
	"inferd/internal/service"
)

const shutdownTimeout = 5 * time.Second

type serveOptions struct {
	addr        string
	corsOrigins string
	chatTimeout int64
	warm        bool
}

func newServeCmd(o *rootOptions) *cobra.Command {
	so := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Example: "  inferd serve -m mistral-7b-instruct-v0.2.Q4_K_M.gguf --warm\n" +
			"  inferd serve --backend ollama --backend-url http://localhost:11434 -m llama2:7b",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := o.resolve(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Addr = so.addr
			}
			if cmd.Flags().Changed("cors-origins") {
				cfg.HTTP.CORSEnabled = true
				cfg.HTTP.CORSOrigins = splitCSV(so.corsOrigins)
			}
			reload := func(c config.Config) (config.Config, error) { return o.reapply(cmd, c) }
			return serve(cmd.Context(), cfg, log, o.configPath, reload, so)
		},
	}
	f := cmd.Flags()
	f.StringVar(&so.addr, "addr", config.DefaultAddr, "HTTP listen address, e.g. :8080")
	f.StringVar(&so.corsOrigins, "cors-origins", "", "Comma-separated origins allowed by CORS (enables CORS)")
	f.Int64Var(&so.chatTimeout, "chat-timeout", 0, "Seconds a /chat turn may run, model load included (0 disables)")
	f.BoolVar(&so.warm, "warm", false, "Load the backend at startup instead of on the first turn")
	return cmd
}

// serve runs the HTTP server, the health loop and, when a config file is
// in use, the reload watcher until ctx ends or SIGINT/SIGTERM arrives.
func serve(ctx context.Context, cfg config.Config, log zerolog.Logger, configPath string,
	reload func(config.Config) (config.Config, error), so *serveOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	rt, err := service.New(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			log.Warn().Err(err).Msg("stopping local server")
		}
	}()

	httpapi.SetLogger(log)
	httpapi.SetMaxBodyBytes(cfg.HTTP.MaxBodyBytes)
	httpapi.SetCORSOptions(cfg.HTTP.CORSEnabled, cfg.HTTP.CORSOrigins, nil, nil)
	httpapi.SetChatTimeoutSeconds(so.chatTimeout)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	httpapi.SetBaseContext(ctx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.NewMux(rt),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.Addr).Str("backend", cfg.Backend.Kind).Str("models_dir", cfg.ModelsDir).Msg("inferd listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			log.Warn().Err(err).Msg("graceful shutdown error")
		}
		return nil
	})
	g.Go(func() error { return rt.Run(gctx) })
	if configPath != "" {
		g.Go(func() error {
			return config.Watch(gctx, configPath, log, func(c config.Config) {
				c, err := reload(c)
				if err != nil {
					log.Error().Err(err).Msg("config reload rejected")
					return
				}
				rt.Reload(gctx, c)
			})
		})
	}
	if so.warm {
		g.Go(func() error {
			if err := rt.Warmup(gctx); err != nil && gctx.Err() == nil {
				log.Warn().Err(err).Msg("warmup failed")
			}
			return nil
		})
	}
	err = g.Wait()
	log.Info().Msg("inferd stopped")
	return err
}
