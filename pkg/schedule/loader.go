package schedule

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// File is the on-disk bootstrap schedule consumed at initialization.
type File struct {
	Owner   string      `yaml:"owner"`
	Entries []fileEntry `yaml:"schedule"`
}

// fileEntry is the loose file shape; Load converts it into the strict
// tagged-union Entry and rejects rows that populate both variants.
type fileEntry struct {
	Recipient string     `yaml:"recipient"`
	Amount    int64      `yaml:"amount"`
	Denom     string     `yaml:"denom,omitempty"`
	Contract  string     `yaml:"contract,omitempty"`
	Height    *uint64    `yaml:"height,omitempty"`
	Time      *time.Time `yaml:"time,omitempty"`
}

// Load reads and validates a bootstrap schedule file.
func Load(path string) (owner string, entries []Entry, err error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("read schedule file: %w", err)
	}
	return Parse(raw)
}

// Parse validates raw YAML schedule bytes.
func Parse(raw []byte) (owner string, entries []Entry, err error) {
	var f File
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return "", nil, fmt.Errorf("parse schedule file: %w", err)
	}
	if f.Owner == "" {
		return "", nil, fmt.Errorf("schedule file requires an owner")
	}

	entries = make([]Entry, 0, len(f.Entries))
	for i, fe := range f.Entries {
		e, err := fe.toEntry()
		if err != nil {
			return "", nil, fmt.Errorf("schedule entry %d: %w", i, err)
		}
		entries = append(entries, e)
	}
	return f.Owner, entries, nil
}

func (fe fileEntry) toEntry() (Entry, error) {
	var asset Asset
	switch {
	case fe.Denom != "" && fe.Contract != "":
		return Entry{}, fmt.Errorf("denom and contract are mutually exclusive")
	case fe.Contract != "":
		asset = NewTokenAsset(fe.Contract, fe.Amount)
	default:
		asset = NewNativeAsset(fe.Denom, fe.Amount)
	}

	var trig Trigger
	switch {
	case fe.Height != nil && fe.Time != nil:
		return Entry{}, fmt.Errorf("height and time are mutually exclusive")
	case fe.Height != nil:
		trig = AtHeight(*fe.Height)
	case fe.Time != nil:
		trig = AtTime(*fe.Time)
	default:
		trig = Never()
	}

	e := Entry{Recipient: fe.Recipient, Asset: asset, Trigger: trig}
	if err := e.Validate(); err != nil {
		return Entry{}, err
	}
	return e, nil
}
