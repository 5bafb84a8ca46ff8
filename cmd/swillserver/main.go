// Command swillserver runs a standalone Swill WebSocket server: an empty
// dispatcher (beyond the built-in introspection handler) mounted on
// pkg/wsserver, for smoke-testing a deployment's networking and config
// layers before any application-specific handlers are registered. Real
// deployments are expected to import pkg/wsserver and pkg/swill directly
// and register their own handlers, the way this file does none.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"

	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli/v3"

	"github.com/tzrikka/swill/internal/logger"
	"github.com/tzrikka/swill/pkg/swill"
	"github.com/tzrikka/swill/pkg/wsserver"
	"github.com/tzrikka/xdg"
)

const (
	configDirName  = "swill"
	configFileName = "config.toml"
)

func main() {
	bi, _ := debug.ReadBuildInfo()

	cmd := &cli.Command{
		Name:    "swillserver",
		Usage:   "standalone Swill RPC WebSocket server",
		Version: bi.Main.Version,
		Flags:   flags(),
		Action: func(_ context.Context, cmd *cli.Command) error {
			initLog(cmd.Bool("dev") || cmd.Bool("pretty-log"))

			d := swill.NewDispatcher(slog.Default())
			s := wsserver.NewServer(cmd, d)
			return s.Run()
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func flags() []cli.Flag {
	fs := []cli.Flag{
		&cli.BoolFlag{
			Name:  "dev",
			Usage: "simple setup, but unsafe for production",
		},
		&cli.BoolFlag{
			Name:  "pretty-log",
			Usage: "human-readable console logging, instead of JSON",
		},
	}

	path := configFile()
	return append(fs, wsserver.Flags(path)...)
}

// configFile returns the path to the app's configuration file, creating
// an empty one if it doesn't already exist.
func configFile() altsrc.StringSourcer {
	path, err := xdg.CreateFile(xdg.ConfigHome, configDirName, configFileName)
	if err != nil {
		logger.FatalError("failed to create config file", err)
	}
	return altsrc.StringSourcer(path)
}

// initLog initializes the default slog logger, based on whether the
// server is running in development mode or not.
func initLog(devMode bool) {
	var handler slog.Handler
	if devMode {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level:     slog.LevelDebug,
			AddSource: true,
		})
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level:     slog.LevelDebug,
			AddSource: true,
		})
	}

	slog.SetDefault(slog.New(handler))
}
