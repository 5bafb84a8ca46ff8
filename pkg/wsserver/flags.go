// Package wsserver exposes the Swill RPC multiplexer (pkg/swill) as a
// mountable net/http handler: it performs the WebSocket upgrade, adapts
// the resulting connection to [swill.Transport], and drives the
// connection through [swill.Serve]. Grounded on the teacher's
// pkg/http/webhooks (server.go for the HTTP-layer shape, config.go for
// CLI flag wiring).
package wsserver

import (
	"errors"

	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli-altsrc/v3/toml"
	"github.com/urfave/cli/v3"
)

const (
	// DefaultPort is the local port the Swill WebSocket server listens on.
	DefaultPort = 14490
	// DefaultPath is the HTTP path Swill connections are upgraded on.
	DefaultPath = "/ws"
)

// Flags defines the CLI flags that configure a Swill WebSocket server.
// Usually these flags are set using environment variables or the
// application's configuration file.
func Flags(configFilePath altsrc.StringSourcer) []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:  "swill-port",
			Usage: "local port number for the Swill WebSocket server",
			Value: DefaultPort,
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("SWILL_PORT"),
				toml.TOML("swill_server.port", configFilePath),
			),
			Validator: validatePort,
		},
		&cli.StringFlag{
			Name:  "swill-path",
			Usage: "HTTP path to upgrade to a Swill WebSocket connection",
			Value: DefaultPath,
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("SWILL_PATH"),
				toml.TOML("swill_server.path", configFilePath),
			),
		},
		&cli.IntFlag{
			Name:  "swill-send-queue-size",
			Usage: "number of outbound frames buffered per connection before a handler blocks",
			Value: 0, // 0 means swill.DefaultSendQueueSize.
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("SWILL_SEND_QUEUE_SIZE"),
				toml.TOML("swill_server.send_queue_size", configFilePath),
			),
		},
	}
}

func validatePort(p int) error {
	if p < 0 || p > 65535 {
		return errors.New("out of range [0-65535]")
	}
	return nil
}
