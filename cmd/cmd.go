// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func formatFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "Output format: text, json or csv",
			Value:   "text",
		},
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output JSON (same as --format json)",
		},
		&cli.BoolFlag{
			Name:  "csv",
			Usage: "Output CSV (same as --format csv)",
		},
	}
}

func taskIDFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "id",
		Usage:    "Task ID",
		Required: true,
	}
}

func selectionFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringSliceFlag{
			Name:  "id",
			Usage: "Task ID to include (repeatable)",
		},
		&cli.BoolFlag{
			Name:  "all",
			Usage: "Select every task awaiting review",
		},
	}
}

func sourceFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "task",
			Aliases:  []string{"t"},
			Usage:    "Task ID under review",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "provider",
			Aliases:  []string{"p"},
			Usage:    "Source provider",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "source",
			Aliases:  []string{"s"},
			Usage:    "Provider's source ID",
			Required: true,
		},
		&cli.StringFlag{
			Name:    "edition",
			Aliases: []string{"e"},
			Usage:   "Edition ID, when the source has several",
		},
	}
}

// setupCommand handles setup operations for the database and configuration.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:  "database",
				Usage: "Initialize the activity database and run migrations",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file",
						Value:   "config.toml",
					},
				},
				Action: r.SetupDatabase,
			},
			{
				Name:  "config",
				Usage: "Write a config.toml populated with defaults",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file",
						Value:   "config.toml",
					},
				},
				Action: r.SetupConfig,
			},
			{
				Name:   "rollback",
				Usage:  "Revert the most recent database migration",
				Action: r.SetupRollback,
			},
		},
	}
}

// tasksCommand handles listing, processing and acting on enrichment tasks.
func tasksCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tasks",
		Aliases: []string{"t"},
		Usage:   "Enrichment task operations",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List tasks with their status counts",
				Flags: append(formatFlags(),
					&cli.StringFlag{
						Name:  "status",
						Usage: "Only show tasks in this status",
					},
				),
				Action: r.TasksList,
			},
			{
				Name:  "process",
				Usage: "Process the next batch of pending tasks",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum tasks to process (default from config)",
					},
				},
				Action: r.TasksProcess,
			},
			{
				Name:   "approve",
				Usage:  "Approve a task with its suggested values",
				Flags:  []cli.Flag{taskIDFlag()},
				Action: r.TaskApprove,
			},
			{
				Name:   "dismiss",
				Usage:  "Dismiss a task awaiting review",
				Flags:  []cli.Flag{taskIDFlag()},
				Action: r.TaskDismiss,
			},
			{
				Name:   "retry",
				Usage:  "Send a task back to the queue",
				Flags:  []cli.Flag{taskIDFlag()},
				Action: r.TaskRetry,
			},
			{
				Name:   "retry-now",
				Usage:  "Retry a task synchronously",
				Flags:  []cli.Flag{taskIDFlag()},
				Action: r.TaskRetryNow,
			},
			{
				Name:   "apply-selected",
				Usage:  "Approve the selected tasks with their suggested values",
				Flags:  selectionFlags(),
				Action: r.TasksApplySelected,
			},
			{
				Name:   "retry-selected",
				Usage:  "Send the selected tasks back to the queue",
				Flags:  selectionFlags(),
				Action: r.TasksRetrySelected,
			},
		},
	}
}

// reviewCommand handles the per-task "choose match" flow.
func reviewCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "review",
		Usage: "Compare candidate sources for a task and approve chosen fields",
		Commands: []*cli.Command{
			{
				Name:  "sources",
				Usage: "List candidate sources for a task",
				Flags: append(formatFlags(),
					&cli.StringFlag{
						Name:     "task",
						Aliases:  []string{"t"},
						Usage:    "Task ID under review",
						Required: true,
					},
					&cli.StringSliceFlag{
						Name:    "language",
						Aliases: []string{"l"},
						Usage:   "Preferred language (repeatable)",
					},
					&cli.StringFlag{
						Name:  "title",
						Usage: "Title override for the source search",
					},
				),
				Action: r.ReviewSources,
			},
			{
				Name:   "compare",
				Usage:  "Compare one source against the current values",
				Flags:  append(sourceFlags(), formatFlags()...),
				Action: r.ReviewCompare,
			},
			{
				Name:  "apply",
				Usage: "Approve a task with values from one source",
				Flags: append(sourceFlags(),
					&cli.StringSliceFlag{
						Name:    "keep",
						Aliases: []string{"k"},
						Usage:   "Field to keep at its current value (repeatable)",
					},
				),
				Action: r.ReviewApply,
			},
		},
	}
}

// watchCommand runs the background poller headless.
func watchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Poll the queue and process pending tasks until interrupted",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "interval",
				Usage: "Poll interval (default from config)",
			},
		},
		Action: r.Watch,
	}
}

// historyCommand prints the local activity log.
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show recent batch runs and bulk actions",
		Flags: append(formatFlags(),
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Number of runs to show",
				Value:   20,
			},
			&cli.StringFlag{
				Name:  "kind",
				Usage: "Only show runs of this kind (process, bulk_apply, bulk_retry, task_action)",
			},
		),
		Action: r.History,
	}
}

// tuiCommand returns the top-level TUI command for the interactive review queue.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch the interactive review queue",
		Action:  r.TUI,
	}
}

// apiCommand handles direct API calls for debugging
func apiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "api",
		Usage: "Direct calls to the library API",
		Commands: []*cli.Command{
			{
				Name:  "get",
				Usage: "Direct GET, prints the response body",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "path",
					},
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
				Name:  "post",
				Usage: "Direct POST with JSON body",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "path",
					},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "data",
						Aliases:  []string{"d"},
						Usage:    "JSON body to send",
						Required: true,
					},
				},
				Action: r.APIPost,
			},
		},
	}
}
