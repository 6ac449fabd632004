// Package artifact provides file-backed collaborators for the flagging
// controller: an artifact is a JSON file holding named views, read by
// DataTask and re-flagged in place by FlagSetter.
package artifact

import (
	"fmt"
	"os"

	"go.uber.org/multierr"

	"github.com/lucasnoah/skyflag/internal/fileutil"
	"github.com/lucasnoah/skyflag/internal/view"
)

// Artifact is the on-disk dataset the flags apply to.
type Artifact struct {
	Name  string       `json:"name"`
	Views []*view.View `json:"views"`
}

// Load reads and validates the artifact at path.
func Load(path string) (*Artifact, error) {
	var a Artifact
	if err := fileutil.ReadJSON(path, &a); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("artifact %s not found", path)
		}
		return nil, err
	}
	var errs error
	for i, v := range a.Views {
		if v == nil {
			errs = multierr.Append(errs, fmt.Errorf("view %d is null", i))
			continue
		}
		if v.Filename == "" {
			v.Filename = a.Name
		}
		errs = multierr.Append(errs, v.Validate())
	}
	if errs != nil {
		return nil, fmt.Errorf("artifact %s: %w", path, errs)
	}
	return &a, nil
}

// Save writes the artifact to path atomically.
func (a *Artifact) Save(path string) error {
	return fileutil.WriteJSON(path, a)
}

// Summary counts flagged and total points, excluding no-data points, over
// the whole artifact, per spw and per antenna.
func (a *Artifact) Summary(name string) Summary {
	s := Summary{Name: name, Spw: make(map[string]Counts), Antenna: make(map[string]Counts)}
	for _, v := range a.Views {
		for i := range v.Data {
			if v.NoData[i] {
				continue
			}
			flagged := 0
			if v.Flag[i] {
				flagged = 1
			}
			s.Total++
			s.Flagged += flagged
			s.Spw[v.Spw] = tally(s.Spw[v.Spw], flagged)
			for _, ant := range pointAntennas(v, i) {
				s.Antenna[ant] = tally(s.Antenna[ant], flagged)
			}
		}
	}
	return s
}

func tally(c Counts, flagged int) Counts {
	c.Total++
	c.Flagged += flagged
	return c
}
