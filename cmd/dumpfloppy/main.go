// Command dumpfloppy acquires a physical floppy disk into an IMD image
// (§6.3), probing geometry and sector layout and retrying bad sectors.
package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sergev/imdisk/internal/acquire"
	"github.com/sergev/imdisk/internal/config"
	"github.com/sergev/imdisk/internal/diskimage"
	"github.com/sergev/imdisk/internal/fdc"
	_ "github.com/sergev/imdisk/internal/fdc/serialfdc"
	_ "github.com/sergev/imdisk/internal/fdc/usbfdc"
	"github.com/sergev/imdisk/internal/imdformat"
)

const programBanner = "dumpfloppy 1.0"

type stderrLogger struct{}

func (stderrLogger) Printf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}

func findController(drive int) (fdc.Controller, error) {
	var lastErr error
	for _, reg := range fdc.Registered() {
		c, err := reg.Open(drive)
		if err == nil {
			return c, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no FDC adapter registered")
	}
	return nil, fmt.Errorf("failed to find USB adapter: %w", lastErr)
}

func main() {
	var (
		alwaysProbe  bool
		drive        int
		forceTracks  int
		readComment  bool
		ignoreSector int
		maxTries     int
		resume       bool
	)

	cmd := &cobra.Command{
		Use:   "dumpfloppy [flags] IMAGE",
		Short: "Capture a physical floppy disk into an IMD image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			imagePath := args[0]

			exists := imdformat.Exists(imagePath)
			if resume && !exists {
				return fmt.Errorf("resume requested but %s does not exist", imagePath)
			}
			if !resume && exists {
				return fmt.Errorf("%s already exists; use -r to resume", imagePath)
			}

			controller, err := findController(drive)
			if err != nil {
				return err
			}
			if closer, ok := controller.(io.Closer); ok {
				defer closer.Close()
			}

			var existing *diskimage.Disk
			if resume {
				existing, err = imdformat.ReadFile(imagePath)
				if err != nil {
					return fmt.Errorf("loading existing image %s: %w", imagePath, err)
				}
			}

			var extraComment []byte
			if readComment {
				extraComment, err = io.ReadAll(os.Stdin)
				if err != nil {
					return fmt.Errorf("reading extra comment from stdin: %w", err)
				}
			}

			out, err := os.Create(imagePath)
			if err != nil {
				return fmt.Errorf("creating image %s: %w", imagePath, err)
			}
			defer out.Close()

			defaults, err := config.Load()
			if err != nil {
				return fmt.Errorf("loading drive defaults: %w", err)
			}

			cfg := acquire.Config{
				Drive:         drive,
				ForcedCyls:    forceTracks,
				AlwaysProbe:   alwaysProbe,
				MaxTries:      maxTries,
				Resume:        resume,
				IgnoreSector:  ignoreSector,
				ProgramBanner: programBanner,
				ExtraComment:  extraComment,
				Defaults:      defaults,
			}

			_, err = acquire.Run(controller, out, cfg, existing, time.Now(), stderrLogger{})
			return err
		},
	}

	cmd.Flags().BoolVarP(&alwaysProbe, "always-probe", "a", false, "always probe every track instead of inheriting layout from the previous cylinder")
	cmd.Flags().IntVarP(&drive, "drive", "d", 0, "drive number")
	cmd.Flags().IntVarP(&forceTracks, "tracks", "t", 0, "force track count instead of detecting it")
	cmd.Flags().BoolVarP(&readComment, "comment", "C", false, "read additional comment bytes from standard input")
	cmd.Flags().IntVarP(&ignoreSector, "ignore-sector", "S", -1, "discard sectors with this logical ID")
	cmd.Flags().IntVarP(&maxTries, "max-tries", "m", acquire.DefaultMaxTries, "retries per track")
	cmd.Flags().BoolVarP(&resume, "resume", "r", false, "resume from an existing image")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "dumpfloppy:", err)
		os.Exit(1)
	}
}
