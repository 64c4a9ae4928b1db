package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gnomeskillet/kiosk/internal/tag"
)

func newReadCmd(opts *rootOpts) *cobra.Command {
	var device string

	cmd := &cobra.Command{
		Use:           "read",
		Short:         "Read the tag on the reader and print its contents",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dev := firstOf(device, opts.cfg.Writer.Device, defaultDevice)
			port, err := os.OpenFile(dev, os.O_RDWR, 0)
			if err != nil {
				return fmt.Errorf("open reader %s: %w", dev, err)
			}
			reader := tag.NewPortReader(port)
			defer reader.Close()
			defer reader.Cleanup()

			fmt.Fprintln(os.Stderr, "place the tag on the reader...")
			uid, raw, err := reader.Read()
			if err != nil {
				return err
			}
			payload := tag.Clean(raw)
			if payload == "" {
				payload = "[empty]"
			}
			fmt.Fprintf(os.Stdout, "uid %s  payload %s\n", uid, payload)
			return nil
		},
	}

	cmd.Flags().StringVar(&device, "device", "", "RFID reader device (default "+defaultDevice+")")
	return cmd
}
