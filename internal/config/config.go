// Package config holds the acquisition driver's ambient defaults: the
// fallback drive geometries used when a track count isn't forced on the
// command line. Nothing
// here is process-global state the way the teacher's package-scope
// variables are — callers get a Defaults value back and thread it
// explicitly into the acquisition config.
package config

import (
	_ "embed"
	"fmt"

	"github.com/BurntSushi/toml"
)

//go:embed defaults.toml
var defaultsData []byte

// DriveGeometry is one entry in the embedded defaults table.
type DriveGeometry struct {
	Name    string `toml:"name"`
	Cyls    int    `toml:"cyls"`
	Heads   int    `toml:"heads"`
	RPM     int    `toml:"rpm"`
	MaxKBps int    `toml:"maxkbps"`
}

type defaultsFile struct {
	Drive []DriveGeometry `toml:"drive"`
}

// Defaults is the parsed set of known drive geometries, keyed by name.
type Defaults struct {
	byName map[string]DriveGeometry
	order  []string
}

// Load parses the embedded defaults table.
func Load() (*Defaults, error) {
	var parsed defaultsFile
	if _, err := toml.Decode(string(defaultsData), &parsed); err != nil {
		return nil, fmt.Errorf("parsing embedded drive defaults: %w", err)
	}
	d := &Defaults{byName: map[string]DriveGeometry{}}
	for _, g := range parsed.Drive {
		if g.Cyls <= 0 || g.Heads <= 0 {
			return nil, fmt.Errorf("drive %q has invalid geometry: cyls=%d heads=%d", g.Name, g.Cyls, g.Heads)
		}
		d.byName[g.Name] = g
		d.order = append(d.order, g.Name)
	}
	return d, nil
}

// Lookup returns the named drive geometry.
func (d *Defaults) Lookup(name string) (DriveGeometry, bool) {
	g, ok := d.byName[name]
	return g, ok
}

// Names lists known drive type names in declaration order.
func (d *Defaults) Names() []string {
	return d.order
}

// HighestCapacity returns the geometry with the largest track count,
// the driver's last-resort guess when nothing else narrows it down.
func (d *Defaults) HighestCapacity() DriveGeometry {
	var best DriveGeometry
	for _, name := range d.order {
		g := d.byName[name]
		if g.Cyls > best.Cyls {
			best = g
		}
	}
	return best
}
