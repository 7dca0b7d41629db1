package stagepage

import (
	"flag"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/stagepage/stagepage/pkg/editor"
	"github.com/stagepage/stagepage/pkg/store/surrealdb"
)

const usage = `subcommand required

Usage: stagepage [flags] <command>

Commands:
  run       Start the stagepage server
  migrate   Create or update the database schema

Examples:
  stagepage run                                      # SQLite in ./stagepage.db
  stagepage -driver postgres -dsn "$DATABASE_URL" run
  stagepage -driver surrealdb run                    # uses SURREALDB_* variables
  stagepage -read-only run                           # reject content writes
  stagepage migrate`

// Parse reads the subcommand and the configuration from args, with
// environment variables as flag defaults.
func Parse(args []string) (Command, *Config, error) {
	flagSet := flag.NewFlagSet("stagepage", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)

	var (
		addr        = flagSet.String("addr", getEnv("STAGEPAGE_ADDR", ":8080"), "Address to listen on")
		driver      = flagSet.String("driver", getEnv("STAGEPAGE_DRIVER", DriverSQLite), "Storage driver: sqlite, postgres or surrealdb")
		dsn         = flagSet.String("dsn", getEnv("STAGEPAGE_DSN", "stagepage.db"), "Database DSN for sqlite and postgres")
		readOnly    = flagSet.Bool("read-only", getEnvBool("STAGEPAGE_READ_ONLY", false), "Start in read-only mode")
		siteHost    = flagSet.String("site-host", getEnv("STAGEPAGE_SITE_HOST", ""), "Public host name; referrals from it count as direct")
		logLevel    = flagSet.String("log-level", getEnv("STAGEPAGE_LOG_LEVEL", "info"), "Log level")
		logFile     = flagSet.String("log-file", getEnv("STAGEPAGE_LOG_FILE", ""), "Append logs to this file instead of stdout")
		logConsole  = flagSet.Bool("log-console", getEnvBool("STAGEPAGE_LOG_CONSOLE", false), "Human readable log output")
		maxSessions = flagSet.Int("max-sessions", editor.DefaultMaxSessions, "Maximum open editor sessions")
		sessionTTL  = flagSet.Duration("session-ttl", editor.DefaultIdleTTL, "Idle time after which an editor session is closed")
	)

	if err := flagSet.Parse(args); err != nil {
		return nil, nil, err
	}

	remainingArgs := flagSet.Args()
	if len(remainingArgs) == 0 {
		return nil, nil, fmt.Errorf(usage)
	}

	var cmd Command
	switch remainingArgs[0] {
	case "run":
		cmd = &RunCommand{}
	case "migrate":
		cmd = &MigrateCommand{}
	default:
		return nil, nil, fmt.Errorf("unknown command: %s\n\nValid commands: run, migrate", remainingArgs[0])
	}

	switch *driver {
	case DriverSQLite, DriverPostgres, DriverSurrealDB:
	default:
		return nil, nil, fmt.Errorf("invalid driver: %s", *driver)
	}
	if *sessionTTL <= 0 {
		return nil, nil, fmt.Errorf("invalid session ttl: %s", *sessionTTL)
	}

	config := &Config{
		Addr:     *addr,
		Driver:   *driver,
		DSN:      *dsn,
		ReadOnly: *readOnly,
		SiteHost: *siteHost,
		SurrealDB: surrealdb.Config{
			URL:       getEnv("SURREALDB_URL", "ws://localhost:8000/rpc"),
			Namespace: getEnv("SURREALDB_NS", "stagepage"),
			Database:  getEnv("SURREALDB_DB", "stagepage"),
			Username:  getEnv("SURREALDB_USER", "root"),
			Password:  getEnv("SURREALDB_PASS", "root"),
		},
		LogLevel:    *logLevel,
		LogFile:     *logFile,
		LogConsole:  *logConsole,
		MaxSessions: *maxSessions,
		SessionTTL:  *sessionTTL,
		SweepEvery:  time.Minute,
	}
	return cmd, config, nil
}

func getEnvBool(key string, defaultValue bool) bool {
	v, err := strconv.ParseBool(getEnv(key, strconv.FormatBool(defaultValue)))
	if err != nil {
		return defaultValue
	}
	return v
}
