package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/moffa90/go-mcumgr/mcumgr"
	"github.com/moffa90/go-mcumgr/transfer"
)

func (s *session) fsCommand() *cli.Command {
	return &cli.Command{
		Name:  "fs",
		Usage: "Transfer files to and from the device file system",
		Subcommands: []*cli.Command{
			{
				Name:      "download",
				Usage:     "Copy a device file to a local file",
				ArgsUsage: "<remote> <local>",
				Action: s.withClient(func(c *cli.Context, client *mcumgr.Client) error {
					if err := requireArgs(c, 2, "<remote> <local>"); err != nil {
						return err
					}
					bar := newProgressBar(os.Stderr, "download")
					defer bar.Done()

					data, err := client.DownloadFile(c.Context, c.Args().Get(0), s.cfg.Capacity,
						transfer.WithProgress(bar.Transfer))
					if err != nil {
						return err
					}
					bar.Done()
					return s.save(c, c.Args().Get(1), data)
				}),
			},
			{
				Name:      "upload",
				Usage:     "Copy a local file to the device",
				ArgsUsage: "<local> <remote>",
				Action: s.withClient(func(c *cli.Context, client *mcumgr.Client) error {
					if err := requireArgs(c, 2, "<local> <remote>"); err != nil {
						return err
					}
					data, err := os.ReadFile(c.Args().Get(0))
					if err != nil {
						return err
					}
					bar := newProgressBar(os.Stderr, "upload")
					defer bar.Done()

					if err := client.UploadFile(c.Context, c.Args().Get(1), data, s.cfg.Capacity,
						transfer.WithProgress(bar.Transfer)); err != nil {
						return err
					}
					bar.Done()
					fmt.Fprintf(c.App.Writer, "uploaded %d bytes to %s\n", len(data), c.Args().Get(1))
					return nil
				}),
			},
		},
	}
}

func (s *session) coreCommand() *cli.Command {
	return &cli.Command{
		Name:  "core",
		Usage: "Read and erase the device core dump",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "Report whether a core dump is present",
				Action: s.withClient(func(c *cli.Context, client *mcumgr.Client) error {
					present, err := client.CoreList(c.Context)
					if err != nil {
						return err
					}
					if present {
						fmt.Fprintln(c.App.Writer, "core dump present")
					} else {
						fmt.Fprintln(c.App.Writer, "no core dump")
					}
					return nil
				}),
			},
			{
				Name:      "download",
				Usage:     "Save the core dump to a local file",
				ArgsUsage: "<local>",
				Action: s.withClient(func(c *cli.Context, client *mcumgr.Client) error {
					if err := requireArgs(c, 1, "<local>"); err != nil {
						return err
					}
					bar := newProgressBar(os.Stderr, "core")
					defer bar.Done()

					data, err := client.DownloadCore(c.Context, s.cfg.Capacity,
						transfer.WithProgress(bar.Transfer))
					if err != nil {
						return err
					}
					bar.Done()
					return s.save(c, c.Args().Get(0), data)
				}),
			},
			{
				Name:  "erase",
				Usage: "Erase the core dump",
				Action: s.withClient(func(c *cli.Context, client *mcumgr.Client) error {
					return client.EraseCore(c.Context)
				}),
			},
		},
	}
}

// save writes downloaded data to path.
func (s *session) save(c *cli.Context, path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Fprintf(c.App.Writer, "downloaded %d bytes to %s\n", len(data), path)
	return nil
}
