package journal

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/openfroyo/installer/pkg/errdefs"
)

// CurrentVersion is the format version written by Flush.
const CurrentVersion byte = 1

// documentV1 is the body of a version 1 journal file.
type documentV1 struct {
	FilesToRemove          []string `json:"FilesToRemove"`
	DirectoriesToRemove    []string `json:"DirectoriesToRemove"`
	RegistryValuesToRemove []string `json:"RegistryValuesToRemove"`
	RegistryKeysToRemove   []string `json:"RegistryKeysToRemove"`
}

// reader parses the body that follows the version header.
type reader func(body []byte) (entrySets, error)

var readers = map[byte]reader{
	1: readV1,
}

// encode renders sets in the current format: version byte, newline, body.
func encode(sets entrySets) ([]byte, error) {
	doc := documentV1{
		FilesToRemove:          sets.sorted(File),
		DirectoriesToRemove:    sets.sorted(Directory),
		RegistryValuesToRemove: sets.sorted(RegistryValue),
		RegistryKeysToRemove:   sets.sorted(RegistryKey),
	}
	body, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode journal: %w", err)
	}

	var buf bytes.Buffer
	buf.Grow(len(body) + 2)
	buf.WriteByte(CurrentVersion)
	buf.WriteByte('\n')
	buf.Write(body)
	return buf.Bytes(), nil
}

// decode dispatches on the version byte. An empty file is an empty journal.
func decode(data []byte) (entrySets, error) {
	if len(data) == 0 {
		return newEntrySets(), nil
	}
	if len(data) < 2 || data[1] != '\n' {
		return nil, errdefs.NewJournalError("malformed journal header", nil)
	}

	version := data[0]
	read, ok := readers[version]
	if !ok {
		return nil, errdefs.NewJournalError(
			fmt.Sprintf("cannot read journal version %d", version),
			errdefs.ErrUnknownJournalVersion,
		).WithDetail("version", int(version))
	}
	return read(data[2:])
}

func readV1(body []byte) (entrySets, error) {
	var doc documentV1
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, errdefs.NewJournalError("failed to parse journal", err)
	}

	sets := newEntrySets()
	for _, v := range doc.FilesToRemove {
		sets.add(File, v)
	}
	for _, v := range doc.DirectoriesToRemove {
		sets.add(Directory, v)
	}
	for _, v := range doc.RegistryValuesToRemove {
		sets.add(RegistryValue, v)
	}
	for _, v := range doc.RegistryKeysToRemove {
		sets.add(RegistryKey, v)
	}
	return sets, nil
}
