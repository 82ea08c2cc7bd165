// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// newApp builds the root command. Global flags are visible to every subcommand.
func newApp(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "hego",
		Usage:   "Sign in to the Hego backend from the terminal",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
				Sources: cli.EnvVars("HEGO_CONFIG"),
			},
			&cli.BoolFlag{
				Name:  "headless",
				Usage: "Run without persistent storage, timers or the CSRF bootstrap",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Log debug output, including every backend request",
			},
		},
		Before:   r.Before,
		After:    r.After,
		Commands: r.register(),
	}
}

// setupCommand handles first-run configuration
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Create configuration and the credential database",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write an example config.toml",
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Create the credential database and run migrations",
				Action: r.SetupDatabase,
			},
		},
	}
}

// loginCommand signs in with a password or an identity provider
func loginCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "login",
		Usage:     "Sign in with email and password, or with google|apple",
		ArgsUsage: "[google|apple]",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "provider"},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "email",
				Aliases: []string{"e"},
				Usage:   "Account email",
			},
			&cli.StringFlag{
				Name:  "password",
				Usage: "Account password (prompted when omitted)",
			},
		},
		Action: r.Login,
	}
}

// registerCommand creates an account
func registerCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "register",
		Usage: "Create an account",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "email",
				Aliases:  []string{"e"},
				Usage:    "Account email",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "username",
				Aliases:  []string{"u"},
				Usage:    "Username",
				Required: true,
			},
			&cli.StringFlag{Name: "first-name", Usage: "First name"},
			&cli.StringFlag{Name: "last-name", Usage: "Last name"},
			&cli.StringFlag{
				Name:  "password",
				Usage: "Account password (prompted when omitted)",
			},
		},
		Action: r.Register,
	}
}

// logoutCommand ends the session
func logoutCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "logout",
		Usage:  "Sign out and clear stored credentials",
		Action: r.Logout,
	}
}

// whoamiCommand prints the current session
func whoamiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "whoami",
		Usage: "Show the signed-in user",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output the session as JSON",
			},
		},
		Action: r.WhoAmI,
	}
}

// profileCommand manages the signed-in profile
func profileCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "profile",
		Usage: "Show or update the signed-in profile",
		Commands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Print the profile",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "markdown",
						Usage: "Output as Markdown",
					},
				},
				Action: r.ProfileShow,
			},
			{
				Name:  "update",
				Usage: "Change profile fields; only the flags given are sent",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "first-name", Usage: "First name"},
					&cli.StringFlag{Name: "last-name", Usage: "Last name"},
					&cli.StringFlag{Name: "username", Usage: "Username"},
					&cli.StringFlag{Name: "email", Usage: "Email"},
					&cli.StringFlag{Name: "picture", Usage: "Path to a profile picture"},
				},
				Action: r.ProfileUpdate,
			},
		},
	}
}

// apiCommand handles raw backend calls through the interceptor chain
func apiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "api",
		Usage: "Call the backend directly with the current credentials",
		Commands: []*cli.Command{
			{
				Name:      "get",
				Usage:     "GET a backend path",
				ArgsUsage: "<path>",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "path"},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output compact JSON",
					},
				},
				Action: r.APIGet,
			},
			{
				Name:      "post",
				Usage:     "POST JSON to a backend path",
				ArgsUsage: "<path>",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "path"},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "data",
						Aliases: []string{"d"},
						Usage:   "JSON request body",
						Value:   "{}",
					},
				},
				Action: r.APIPost,
			},
		},
	}
}

// serveCommand runs the companion web server
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the companion web server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (defaults to server.host:server.port)",
			},
		},
		Action: r.Serve,
	}
}

// tuiCommand launches the terminal login form
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "tui",
		Usage:  "Sign in through an interactive terminal form",
		Action: r.TUI,
	}
}
