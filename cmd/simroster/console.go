package main

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/simroster/simroster/internal/config"
	workflowservice "github.com/simroster/simroster/internal/workflow/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// consoleModule attaches the operator console: every stdin line is one input
// event for the configured console actor, every reply goes to stdout.
var consoleModule = fx.Module("console",
	fx.Invoke(runConsole),
)

func runConsole(lc fx.Lifecycle, shutdowner fx.Shutdowner, logger *zap.Logger, cfg config.Config, engine *workflowservice.Engine) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				scanner := bufio.NewScanner(os.Stdin)
				for scanner.Scan() {
					reply, err := engine.Handle(ctx, cfg.ConsoleActorID, scanner.Text())
					if err != nil {
						logger.Error("input handling failed", zap.Error(err))
					}
					if reply != "" {
						fmt.Println(reply)
					}
				}
				if err := scanner.Err(); err != nil {
					logger.Error("stdin read failed", zap.Error(err))
				}
				if err := shutdowner.Shutdown(); err != nil {
					logger.Error("shutdown failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}
