// control/flags.go
// Author: momentics <momentics@gmail.com>
//
// Command-line overrides for the most frequently tuned keys.

package control

import (
	"fmt"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// flagKeys maps flag names to configuration keys.
var flagKeys = map[string]string{
	"listen":          "reactor.listen",
	"threads":         "pool.threads",
	"queue-capacity":  "pool.queue_capacity",
	"max-connections": "reactor.max_connections",
	"cpu":             "reactor.cpu",
	"log-level":       "logging.level",
	"log-format":      "logging.format",
	"metrics":         "metrics.enabled",
	"metrics-listen":  "metrics.listen",
}

// RegisterFlags adds the override flags to fs. Defaults shown in help are
// the built-in ones; unset flags never override other sources.
func RegisterFlags(fs *pflag.FlagSet) {
	d := DefaultConfig()
	fs.String("listen", d.Reactor.Listen, "listen address (host:port)")
	fs.Int("threads", d.Pool.Threads, "worker threads")
	fs.Int("queue-capacity", d.Pool.QueueCapacity, "worker pool queue capacity")
	fs.Int("max-connections", d.Reactor.MaxConnections, "maximum live connections")
	fs.Int("cpu", d.Reactor.CPU, "pin the reactor thread to this CPU (-1 disables)")
	fs.String("log-level", d.Logging.Level, "log level (trace, debug, info, warn, error)")
	fs.String("log-format", d.Logging.Format, "log format (json, console)")
	fs.Bool("metrics", d.Metrics.Enabled, "serve /metrics and /debug/state")
	fs.String("metrics-listen", d.Metrics.Listen, "metrics endpoint address")
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}
