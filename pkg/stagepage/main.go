package stagepage

import (
	"context"
	"fmt"

	"github.com/stagepage/stagepage/pkg/logger"
)

// Main parses args, builds the application and executes the selected
// command until ctx is done.
func Main(ctx context.Context, args []string) error {
	cmd, config, err := Parse(args)
	if err != nil {
		return fmt.Errorf("failed to parse configuration: %w", err)
	}

	logs, err := logger.New().
		FromPath(config.LogFile).
		WithLevel(config.LogLevel).
		Console(config.LogConsole).
		Make()
	if err != nil {
		return fmt.Errorf("failed to open log: %w", err)
	}
	defer logs.Close()

	app, err := New(ctx, config, logs.Logger)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}
	defer app.Close()

	switch c := cmd.(type) {
	case *MigrateCommand:
		if err := app.Migrate(ctx, c); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	case *RunCommand:
		if err := app.Run(ctx, c); err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	default:
		return fmt.Errorf("unknown command type: %T", cmd)
	}

	return nil
}
