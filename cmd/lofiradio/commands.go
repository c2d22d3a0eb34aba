package main

import "github.com/urfave/cli/v3"

// rootCommand builds the command tree. Without a subcommand the desktop
// window opens.
func rootCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "lofiradio",
		Usage:   "Stream curated lofi internet radio",
		Version: "1.0.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file (default: user config dir)",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level: debug, info, warn or error",
			},
			&cli.BoolFlag{
				Name:  "trace",
				Usage: "Enable verbose libVLC logging to vlc.log",
			},
			&cli.StringFlag{
				Name:    "backend",
				Aliases: []string{"b"},
				Usage:   "Audio backend: vlc or beep",
			},
		},
		Before:   r.Setup,
		Action:   r.GUI,
		Commands: r.register(),
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		guiCommand, tuiCommand, playCommand, stationsCommand, peekCommand, prefsCommand,
	} {
		commands = append(commands, fn(r))
	}
	return commands
}

func guiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "gui",
		Usage:  "Open the desktop player window",
		Action: r.GUI,
	}
}

func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "tui",
		Usage:  "Open the terminal player",
		Action: r.TUI,
	}
}

func playCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "play",
		Usage: "Play a station without a window and log its status until interrupted",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "station",
			},
		},
		Action: r.Play,
	}
}

func stationsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "stations",
		Aliases: []string{"ls"},
		Usage:   "List the station catalog",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "filter",
				Aliases: []string{"f"},
				Usage:   "Only show stations whose name or description matches",
			},
			&cli.BoolFlag{
				Name:  "favorites",
				Usage: "Only show favorite stations",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print JSON output",
			},
		},
		Action: r.Stations,
	}
}

func peekCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "peek",
		Usage: "Fetch one now-playing sample from a station id or stream URL",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "target",
			},
		},
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Give up after this long",
				Value: defaultPeekTimeout,
			},
			&cli.BoolFlag{
				Name:  "headers",
				Usage: "Print the stream response headers",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Peek,
	}
}

func prefsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "prefs",
		Usage:  "Show or change stored preferences",
		Action: r.PrefsShow,
		Commands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Print the stored preferences",
				Action: r.PrefsShow,
			},
			{
				Name:  "volume",
				Usage: "Set the stored volume (0-100)",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "level",
					},
				},
				Action: r.PrefsVolume,
			},
			{
				Name:  "autoplay",
				Usage: "Turn playing the last station on start on or off",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "state",
					},
				},
				Action: r.PrefsAutoplay,
			},
			{
				Name:  "favorite",
				Usage: "Toggle a station in the favorites",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "station",
					},
				},
				Action: r.PrefsFavorite,
			},
		},
	}
}
