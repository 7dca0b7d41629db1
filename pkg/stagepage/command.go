package stagepage

// Command is a subcommand selected on the command line.
type Command interface {
	Name() string
}

// RunCommand serves the public page and the admin API.
type RunCommand struct{}

func (c *RunCommand) Name() string {
	return "run"
}

// MigrateCommand creates or updates the database schema.
type MigrateCommand struct{}

func (c *MigrateCommand) Name() string {
	return "migrate"
}
