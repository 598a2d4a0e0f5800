package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/moffa90/go-mcumgr/mcumgr"
)

func (s *session) echoCommand() *cli.Command {
	return &cli.Command{
		Name:      "echo",
		Usage:     "Send text and print the device's reply",
		ArgsUsage: "<text>",
		Action: s.withClient(func(c *cli.Context, client *mcumgr.Client) error {
			if err := requireArgs(c, 1, "<text>"); err != nil {
				return err
			}
			reply, err := client.Echo(c.Context, c.Args().First())
			if err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, reply)
			return nil
		}),
	}
}

func (s *session) taskStatCommand() *cli.Command {
	return &cli.Command{
		Name:  "taskstat",
		Usage: "Show per-task statistics",
		Action: s.withClient(func(c *cli.Context, client *mcumgr.Client) error {
			tasks, err := client.TaskStats(c.Context)
			if err != nil {
				return err
			}
			w := c.App.Writer
			fmt.Fprintf(w, "%-16s %4s %4s %8s %8s %10s %10s\n",
				"task", "pri", "tid", "stkuse", "stksiz", "cswcnt", "runtime")
			for _, t := range tasks {
				fmt.Fprintf(w, "%-16s %4d %4d %8d %8d %10d %10d\n",
					t.Name, t.Priority, t.TaskID, t.StackUsed, t.StackSize, t.ContextSwitches, t.Runtime)
			}
			return nil
		}),
	}
}

func (s *session) paramsCommand() *cli.Command {
	return &cli.Command{
		Name:  "params",
		Usage: "Show the device SMP buffer parameters",
		Action: s.withClient(func(c *cli.Context, client *mcumgr.Client) error {
			p, err := client.Params(c.Context)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "buf_size=%d buf_count=%d\n", p.BufSize, p.BufCount)
			return nil
		}),
	}
}

func (s *session) resetCommand() *cli.Command {
	return &cli.Command{
		Name:  "reset",
		Usage: "Reboot the device",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "force", Usage: "Reset even if the device is busy"},
		},
		Action: s.withClient(func(c *cli.Context, client *mcumgr.Client) error {
			return client.Reset(c.Context, c.Bool("force"))
		}),
	}
}
