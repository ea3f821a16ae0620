// control/hotreload.go
// Author: momentics <momentics@gmail.com>
//
// Feeds configuration file changes into a ConfigStore.

package control

import (
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Reloader re-decodes the watched viper instance on change. Invalid
// configurations are logged and discarded; the store keeps the last good one.
type Reloader struct {
	v     *viper.Viper
	store *ConfigStore
	log   zerolog.Logger
}

// NewReloader binds v to store.
func NewReloader(v *viper.Viper, store *ConfigStore, log zerolog.Logger) *Reloader {
	return &Reloader{
		v:     v,
		store: store,
		log:   log.With().Str("component", "reload").Logger(),
	}
}

// Watch starts watching the configuration file. It is a no-op when no file
// was loaded.
func (r *Reloader) Watch() {
	if r.v.ConfigFileUsed() == "" {
		return
	}
	r.v.OnConfigChange(func(e fsnotify.Event) {
		r.log.Info().Str("file", e.Name).Str("op", e.Op.String()).Msg("configuration changed")
		_ = r.Reload()
	})
	r.v.WatchConfig()
}

// Reload decodes and validates the current state and publishes it.
func (r *Reloader) Reload() error {
	cfg, err := decode(r.v)
	if err != nil {
		r.log.Error().Err(err).Msg("reload rejected")
		return err
	}
	r.store.SetConfig(*cfg)
	return nil
}

// RestartRequired lists the sections whose change only takes effect after a
// restart.
func RestartRequired(old, updated Config) []string {
	var out []string
	if old.Server != updated.Server {
		out = append(out, "server")
	}
	if old.Pool != updated.Pool {
		out = append(out, "pool")
	}
	if old.Reactor != updated.Reactor {
		out = append(out, "reactor")
	}
	if old.Echo != updated.Echo {
		out = append(out, "echo")
	}
	if old.Metrics != updated.Metrics {
		out = append(out, "metrics")
	}
	if old.Logging.Format != updated.Logging.Format || old.Logging.Output != updated.Logging.Output {
		out = append(out, "logging")
	}
	return out
}
