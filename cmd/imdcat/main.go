// Command imdcat inspects and converts IMD disk images (§6.3): it can
// print the embedded comment, list track and sector status, hex-dump
// contents, or flatten the image to a raw sector stream.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sergev/imdisk/internal/diskimage"
	"github.com/sergev/imdisk/internal/flatten"
	"github.com/sergev/imdisk/internal/imdformat"
)

// stdinPrompter asks the operator on the controlling terminal which
// reading of an ambiguous sector to keep, defaulting to the highest
// read-count reading on empty input.
type stdinPrompter struct {
	in *bufio.Reader
}

func (p *stdinPrompter) Choose(addr flatten.SectorAddr, numChoices int, defaultIdx int) (int, error) {
	fmt.Fprintf(os.Stderr, "sector %s has %d distinct readings; choose 1-%d [%d]: ", addr, numChoices, numChoices, defaultIdx+1)
	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		return defaultIdx, nil
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return defaultIdx, nil
	}
	var choice int
	if _, err := fmt.Sscanf(line, "%d", &choice); err != nil {
		return defaultIdx, nil
	}
	if choice < 1 || choice > numChoices {
		return defaultIdx, nil
	}
	return choice - 1, nil
}

func main() {
	var (
		printComment bool
		outPath      string
		verbose      bool
		hexDump      bool
		permissive   bool
		inCylsFlag   string
		inHeadsFlag  string
		inSectsFlag  string
		outCylsFlag  string
		outHeadsFlag string
		outSectsFlag string
	)

	cmd := &cobra.Command{
		Use:   "imdcat [flags] IMAGE",
		Short: "Inspect and convert IMD disk images",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			imagePath := args[0]

			disk, err := imdformat.ReadFile(imagePath)
			if err != nil {
				return fmt.Errorf("reading %s: %w", imagePath, err)
			}

			if hexDump {
				verbose = true
			}
			if outPath == "" && !printComment {
				verbose = true
			}

			if printComment {
				os.Stdout.Write(disk.Comment)
			}

			if verbose {
				printListing(disk, hexDump)
			}

			if outPath == "" {
				return nil
			}

			opts, err := buildFlattenOptions(inCylsFlag, inHeadsFlag, inSectsFlag, outCylsFlag, outHeadsFlag, outSectsFlag, permissive)
			if err != nil {
				return err
			}

			result, err := flatten.Flatten(disk, opts)
			if err != nil {
				return fmt.Errorf("flattening %s: %w", imagePath, err)
			}
			if result.Warnings != nil {
				for _, w := range result.Warnings.Errors {
					fmt.Fprintln(os.Stderr, "warning:", w)
				}
			}

			if err := os.WriteFile(outPath, result.Data, 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", outPath, err)
			}
			return nil
		},
	}

	// §6.3 claims -h for the head range, which collides with cobra's
	// auto-added "-h" help shorthand; register help without a shorthand
	// first so cobra doesn't try to claim "-h" itself.
	cmd.Flags().BoolP("help", "", false, "help for "+cmd.Name())

	cmd.Flags().BoolVarP(&printComment, "comment", "n", false, "print the image's comment")
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "write a flattened raw sector image to FILE")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "list track and sector status")
	cmd.Flags().BoolVarP(&hexDump, "hex", "x", false, "hex-dump sector contents (implies -v)")
	cmd.Flags().BoolVarP(&permissive, "permissive", "p", false, "tolerate duplicate sectors instead of aborting")
	cmd.Flags().StringVarP(&inCylsFlag, "in-cyls", "c", "", "input cylinder range FIRST:LAST")
	cmd.Flags().StringVarP(&inHeadsFlag, "in-heads", "h", "", "input head range FIRST:LAST")
	cmd.Flags().StringVarP(&inSectsFlag, "in-sectors", "s", "", "input sector range FIRST:LAST")
	cmd.Flags().StringVarP(&outCylsFlag, "out-cyls", "C", "", "output cylinder range FIRST:LAST")
	cmd.Flags().StringVarP(&outHeadsFlag, "out-heads", "H", "", "output head range FIRST:LAST")
	cmd.Flags().StringVarP(&outSectsFlag, "out-sectors", "S", "", "output sector range FIRST:LAST")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "imdcat:", err)
		os.Exit(1)
	}
}

func buildFlattenOptions(inC, inH, inS, outC, outH, outS string, permissive bool) (flatten.Options, error) {
	opts := flatten.Options{Permissive: permissive, Prompt: &stdinPrompter{in: bufio.NewReader(os.Stdin)}}

	var err error
	if opts.InCyls, err = rangeOrUnbounded(inC); err != nil {
		return opts, err
	}
	if opts.InHeads, err = rangeOrUnbounded(inH); err != nil {
		return opts, err
	}
	if opts.InSectors, err = rangeOrUnbounded(inS); err != nil {
		return opts, err
	}
	if opts.OutCyls, err = optionalRange(outC); err != nil {
		return opts, err
	}
	if opts.OutHeads, err = optionalRange(outH); err != nil {
		return opts, err
	}
	if opts.OutSectors, err = optionalRange(outS); err != nil {
		return opts, err
	}
	return opts, nil
}

func rangeOrUnbounded(s string) (flatten.Range, error) {
	if s == "" {
		return flatten.NewUnbounded(), nil
	}
	return flatten.ParseRange(s)
}

func optionalRange(s string) (*flatten.Range, error) {
	if s == "" {
		return nil, nil
	}
	r, err := flatten.ParseRange(s)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func printListing(disk *diskimage.Disk, hexDump bool) {
	summary := disk.Summarize()
	fmt.Printf("%d cylinders, %d heads — %s\n", disk.NumPhysCyls, disk.NumPhysHeads, summary)

	for c := 0; c < disk.NumPhysCyls; c++ {
		for h := 0; h < disk.NumPhysHeads; h++ {
			t := disk.Track(c, h)
			if t.Status == diskimage.TrackUnknown {
				continue
			}
			fmt.Printf("cyl %3d head %d: mode=%s size=%d sectors=%d\n", c, h, t.DataMode.Name, t.SectorSize(), t.NumSectors)
			for i := 0; i < t.NumSectors; i++ {
				s := &t.Sectors[i]
				status := "missing"
				switch s.Status {
				case diskimage.SectorGood:
					status = "good"
				case diskimage.SectorBad:
					status = "bad"
				}
				extra := ""
				if s.Deleted {
					extra = " deleted"
				}
				if s.Datas.Len() > 1 {
					extra += fmt.Sprintf(" (%d readings)", s.Datas.Len())
				}
				fmt.Printf("  sector %3d: %s%s\n", s.LogSector, status, extra)
				if hexDump && s.Datas.Len() > 0 {
					hexDumpBytes(s.Datas.At(s.Datas.HighestCountIndex()).Data)
				}
			}
		}
	}
}

func hexDumpBytes(data []byte) {
	for off := 0; off < len(data); off += 16 {
		end := off + 16
		if end > len(data) {
			end = len(data)
		}
		fmt.Printf("    %04x: % x\n", off, data[off:end])
	}
}
