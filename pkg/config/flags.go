package config

import "flag"

type flagValues struct {
	configFile       string
	addr             string
	dbDriver         string
	dbDSN            string
	logLevel         string
	logFormat        string
	enforceListOwner bool
}

func registerFlags(fs *flag.FlagSet) *flagValues {
	f := &flagValues{}
	fs.StringVar(&f.configFile, "config", "", "path to a TOML config file")
	fs.StringVar(&f.addr, "addr", DefaultAddr, "the address to listen on")
	fs.StringVar(&f.dbDriver, "db-driver", DefaultDriver, "database driver: sqlite3 or postgres")
	fs.StringVar(&f.dbDSN, "db-dsn", DefaultDSN, "database connection string")
	fs.StringVar(&f.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	fs.StringVar(&f.logFormat, "log-format", "text", "log format: text, json, logfmt")
	fs.BoolVar(&f.enforceListOwner, "enforce-list-owner", false, "only allow list owners to edit or delete lists")
	return f
}

// applyFlags copies only the flags that were given on the command line, so unset flags do not clobber
// file or environment values with their defaults.
func applyFlags(cfg *Config, fs *flag.FlagSet, f *flagValues) {
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "addr":
			cfg.Addr = f.addr
		case "db-driver":
			cfg.Database.Driver = f.dbDriver
		case "db-dsn":
			cfg.Database.DSN = f.dbDSN
		case "log-level":
			cfg.Log.Level = f.logLevel
		case "log-format":
			cfg.Log.Format = f.logFormat
		case "enforce-list-owner":
			cfg.EnforceListOwner = f.enforceListOwner
		}
	})
}
