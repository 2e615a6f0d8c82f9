// Package manifest locates and decodes the remote catalog manifest. It
// tries a fixed list of candidate locations under a base address and
// returns the records of the first one that decodes.
package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/tphakala/quack-go/internal/errors"
)

// Record is one raw manifest entry. Every field is optional; pointer
// fields distinguish absent from empty. Unknown JSON fields are ignored.
type Record struct {
	SpeciesName      *string  `json:"species_name"`
	ScientificName   *string  `json:"scientific_name"`
	BasicDescription *string  `json:"basic_description"`
	CoolFacts        *string  `json:"cool_facts"`
	FindThisBird     *string  `json:"find_this_bird"`
	Images           []string `json:"images"`
	Videos           []string `json:"videos"`
	Sounds           []string `json:"sounds"`
	Regions          []string `json:"regions"`
}

// IsNoise reports whether r carries none of the fields that make a record
// worth showing: a name, a description pointer or at least one image.
// Videos, sounds and regions do not count.
func IsNoise(r Record) bool {
	return r.SpeciesName == nil && r.BasicDescription == nil && len(r.Images) == 0
}

// Filter returns the records that are not noise, in their original order.
func Filter(records []Record) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if IsNoise(r) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Decode parses a manifest payload. The payload must be a JSON array whose
// elements are all objects matching Record; anything else is an error.
func Decode(data []byte) ([]Record, error) {
	data = bytes.TrimSpace(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf")))
	if len(data) == 0 || data[0] != '[' {
		return nil, decodeError(errors.NewStd("payload is not a JSON array"), len(data))
	}

	var raw []*Record
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, decodeError(err, len(data))
	}

	records := make([]Record, len(raw))
	for i, r := range raw {
		if r == nil {
			return nil, decodeError(fmt.Errorf("manifest entry %d is null", i), len(data))
		}
		records[i] = *r
	}
	return records, nil
}

func decodeError(err error, size int) error {
	return errors.New(err).
		Component("manifest").
		Category(errors.CategoryFileParsing).
		Context("operation", "decode").
		Context("payload_bytes", size).
		Build()
}
