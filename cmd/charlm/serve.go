package main

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/charlm/internal/api"
	"github.com/samcharles93/charlm/internal/logger"
)

func serveCmd() *cli.Command {
	def := api.DefaultConfig()
	var (
		addr          string
		readTimeout   time.Duration
		maxNewTokens  int64
		ratePerSecond float64
		burst         int64
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Train, then serve generation over HTTP",
		Flags: append(pipelineFlags(),
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address",
				Value:       "127.0.0.1:8080",
				Destination: &addr,
			},
			&cli.DurationFlag{
				Name:        "read-timeout",
				Usage:       "read header timeout",
				Value:       30 * time.Second,
				Destination: &readTimeout,
			},
			&cli.Int64Flag{
				Name:        "max-new-tokens",
				Usage:       "upper bound on max_new_tokens per request",
				Value:       int64(def.MaxNewTokens),
				Destination: &maxNewTokens,
			},
			&cli.Float64Flag{
				Name:        "rate",
				Usage:       "generate requests per second (0 disables limiting)",
				Value:       def.RatePerSecond,
				Destination: &ratePerSecond,
			},
			&cli.Int64Flag{
				Name:        "burst",
				Usage:       "generate request burst size",
				Value:       int64(def.Burst),
				Destination: &burst,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			cfg, err := loadConfig(configFile)
			if err != nil {
				return err
			}
			applyServeConfig(cmd, cfg, &addr, &maxNewTokens, &ratePerSecond, &burst)

			t, err := trainFromFlags(ctx, cmd)
			if err != nil {
				return err
			}
			gen, err := api.NewGenerator(t.model, t.data.Vocab, seed)
			if err != nil {
				return err
			}
			server := api.NewServer(gen, api.Config{
				MaxNewTokens:     int(maxNewTokens),
				DefaultNewTokens: min(def.DefaultNewTokens, int(maxNewTokens)),
				RatePerSecond:    ratePerSecond,
				Burst:            int(burst),
			}, log)

			e := echo.New()
			e.Use(middleware.RequestLogger())
			e.Use(middleware.Recover())
			server.Register(e)
			log.Info("starting server", "address", addr, "params", t.model.NumParams())
			sc := echo.StartConfig{
				Address: addr,
				BeforeServeFunc: func(srv *http.Server) error {
					srv.ReadHeaderTimeout = readTimeout
					return nil
				},
			}
			return sc.Start(ctx, e)
		},
	}
}
