package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/moffa90/go-mcumgr/dfu"
	"github.com/moffa90/go-mcumgr/image"
	"github.com/moffa90/go-mcumgr/mcumgr"
	"github.com/moffa90/go-mcumgr/protocol"
	"github.com/moffa90/go-mcumgr/transfer"
)

func (s *session) imageCommand() *cli.Command {
	return &cli.Command{
		Name:  "image",
		Usage: "Manage firmware images",
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List image slots",
				Action: s.withClient(s.imageList),
			},
			{
				Name:      "upload",
				Usage:     "Upload an image to the secondary slot",
				ArgsUsage: "<file>",
				Flags: []cli.Flag{
					&cli.UintFlag{Name: "image", Usage: "Image number on multi-image devices"},
					&cli.BoolFlag{Name: "upgrade", Usage: "Refuse images not newer than the running one"},
					&cli.BoolFlag{Name: "no-sha", Usage: "Do not send the image SHA-256"},
				},
				Action: s.withClient(s.imageUpload),
			},
			{
				Name:      "test",
				Usage:     "Mark an image for a test boot on the next reset",
				ArgsUsage: "<hash>",
				Action: s.withClient(func(c *cli.Context, client *mcumgr.Client) error {
					if err := requireArgs(c, 1, "<hash>"); err != nil {
						return err
					}
					hash, err := parseHash(c.Args().First())
					if err != nil {
						return err
					}
					slots, err := client.TestImage(c.Context, hash)
					if err != nil {
						return err
					}
					printSlots(c.App.Writer, slots)
					return nil
				}),
			},
			{
				Name:      "confirm",
				Usage:     "Make an image permanent (the running image if no hash is given)",
				ArgsUsage: "[hash]",
				Action: s.withClient(func(c *cli.Context, client *mcumgr.Client) error {
					var hash []byte
					if c.NArg() > 0 {
						h, err := parseHash(c.Args().First())
						if err != nil {
							return err
						}
						hash = h
					}
					slots, err := client.ConfirmImage(c.Context, hash)
					if err != nil {
						return err
					}
					printSlots(c.App.Writer, slots)
					return nil
				}),
			},
			{
				Name:  "erase",
				Usage: "Erase an image slot",
				Flags: []cli.Flag{
					&cli.UintFlag{Name: "slot", Value: 1, Usage: "Slot to erase"},
				},
				Action: s.withClient(func(c *cli.Context, client *mcumgr.Client) error {
					return client.EraseImage(c.Context, uint32(c.Uint("slot")))
				}),
			},
			{
				Name:      "info",
				Usage:     "Show the header and hash of a local image file",
				ArgsUsage: "<file>",
				Action:    imageInfo,
			},
		},
	}
}

func (s *session) imageList(c *cli.Context, client *mcumgr.Client) error {
	slots, err := client.ImageState(c.Context)
	if err != nil {
		return err
	}
	printSlots(c.App.Writer, slots)
	return nil
}

func (s *session) imageUpload(c *cli.Context, client *mcumgr.Client) error {
	if err := requireArgs(c, 1, "<file>"); err != nil {
		return err
	}
	data, err := os.ReadFile(c.Args().First())
	if err != nil {
		return err
	}

	bar := newProgressBar(os.Stderr, "uploading")
	defer bar.Done()

	opts := []mcumgr.UploadOption{
		mcumgr.WithTransferOptions(transfer.WithProgress(bar.Transfer)),
	}
	if c.IsSet("image") {
		opts = append(opts, mcumgr.WithImageNumber(uint32(c.Uint("image"))))
	}
	if c.Bool("upgrade") {
		opts = append(opts, mcumgr.WithUpgrade())
	}
	if c.Bool("no-sha") {
		opts = append(opts, mcumgr.WithoutSHA())
	}

	if err := client.UploadImage(c.Context, data, s.cfg.Capacity, opts...); err != nil {
		return err
	}
	bar.Done()
	fmt.Fprintf(c.App.Writer, "uploaded %d bytes, hash %x\n", len(data), image.Hash(data))
	return nil
}

func imageInfo(c *cli.Context) error {
	if err := requireArgs(c, 1, "<file>"); err != nil {
		return err
	}
	data, err := os.ReadFile(c.Args().First())
	if err != nil {
		return err
	}
	img, err := image.Parse(data)
	if err != nil {
		return err
	}
	w := c.App.Writer
	fmt.Fprintf(w, "version:   %s\n", img.Header.Version)
	fmt.Fprintf(w, "load addr: 0x%08x\n", img.Header.LoadAddr)
	fmt.Fprintf(w, "header:    %d bytes\n", img.Header.HeaderSize)
	fmt.Fprintf(w, "payload:   %d bytes\n", img.Header.ImageSize)
	fmt.Fprintf(w, "hash:      %x\n", image.Hash(data))
	return nil
}

func (s *session) upgradeCommand() *cli.Command {
	return &cli.Command{
		Name:      "upgrade",
		Usage:     "Upload, test, reset and confirm a firmware image",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "mode",
				Value: dfu.ModeTestAndConfirm.String(),
				Usage: "test-and-confirm, confirm-only or test-only",
			},
			&cli.DurationFlag{Name: "reset-wait", Usage: "Wait after reset before polling the device"},
			&cli.IntFlag{Name: "poll-attempts", Usage: "Image list attempts after reset"},
		},
		Action: s.withClient(s.upgrade),
	}
}

func (s *session) upgrade(c *cli.Context, client *mcumgr.Client) error {
	if err := requireArgs(c, 1, "<file>"); err != nil {
		return err
	}
	mode, err := parseMode(c.String("mode"))
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	data, err := os.ReadFile(c.Args().First())
	if err != nil {
		return err
	}
	if _, err := image.Parse(data); err != nil {
		return err
	}

	bar := newProgressBar(os.Stderr, "")
	defer bar.Done()

	opts := []dfu.Option{
		dfu.WithMode(mode),
		dfu.WithLogger(s.logger),
		dfu.WithCapacity(s.cfg.Capacity),
		dfu.WithProgressCallback(bar.Upgrade),
	}
	if c.IsSet("reset-wait") {
		opts = append(opts, dfu.WithResetWait(c.Duration("reset-wait")))
	}
	if c.IsSet("poll-attempts") {
		opts = append(opts, dfu.WithPollAttempts(c.Int("poll-attempts")))
	}

	up := dfu.New(client, data, opts...)
	if err := up.Run(c.Context); err != nil {
		return err
	}
	bar.Done()
	fmt.Fprintf(c.App.Writer, "upgrade complete, hash %x\n", up.Hash())
	return nil
}

func parseMode(s string) (dfu.Mode, error) {
	for _, m := range []dfu.Mode{dfu.ModeTestAndConfirm, dfu.ModeConfirmOnly, dfu.ModeTestOnly} {
		if m.String() == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown mode %q (want test-and-confirm, confirm-only or test-only)", s)
}

func parseHash(s string) ([]byte, error) {
	hash, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hash %q: %w", s, err)
	}
	if len(hash) != 32 {
		return nil, fmt.Errorf("invalid hash %q: want 32 bytes, got %d", s, len(hash))
	}
	return hash, nil
}

func printSlots(w io.Writer, slots []protocol.ImageSlot) {
	for _, s := range slots {
		var num uint32
		if s.Image != nil {
			num = *s.Image
		}
		var flags []string
		for _, f := range []struct {
			set  bool
			name string
		}{
			{s.Bootable, "bootable"},
			{s.Pending, "pending"},
			{s.Confirmed, "confirmed"},
			{s.Active, "active"},
			{s.Permanent, "permanent"},
		} {
			if f.set {
				flags = append(flags, f.name)
			}
		}
		fmt.Fprintf(w, "image=%d slot=%d\n", num, s.Slot)
		fmt.Fprintf(w, "    version: %s\n", s.Version)
		fmt.Fprintf(w, "    flags:   %s\n", strings.Join(flags, " "))
		fmt.Fprintf(w, "    hash:    %x\n", s.Hash)
	}
}
