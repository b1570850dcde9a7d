package qpgo

import "github.com/BurntSushi/toml"

// Config carries the handful of knobs a host process needs before building
// a Framework. The data model has no other externally tunable parameters,
// so this stays a small, flat struct decoded directly from TOML rather than
// routed through a feeder/DI layer.
type Config struct {
	// Debug raises the default Framework logger to Debug level (active
	// object registration, timer rearms). Has no effect if WithLogger
	// installs a custom Logger.
	Debug bool `toml:"debug"`
	// MailboxCapacityHint bounds the mailbox of any active object started
	// without its own explicit SetMailboxCapacity call. 0 means unbounded.
	MailboxCapacityHint int `toml:"mailbox_capacity_hint"`
}

// DefaultConfig returns the zero-tuning configuration: debug logging off,
// a 64-event default mailbox capacity.
func DefaultConfig() Config {
	return Config{MailboxCapacityHint: 64}
}

// LoadConfig decodes a Config from a TOML file at path, starting from
// DefaultConfig so unset fields keep their defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}
