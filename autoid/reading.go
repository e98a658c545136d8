package autoid

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// Reading is the content of one reader frame: the tag data and its received signal strength.
type Reading struct {
	Data string `json:"data"`
	RSSI int    `json:"rssi"`
}

// wireReading keeps the field order of the reader protocol and detects missing fields.
type wireReading struct {
	RSSI *float64 `json:"rssi"`
	Data *string  `json:"data"`
}

// ParseReading decodes a frame payload into a Reading.
//
// The payload must be a JSON object with a string "data" and a numeric "rssi" field.
// A fractional rssi is rounded to the nearest integer. Errors wrap ErrMalformedReading.
func ParseReading(payload []byte) (Reading, error) {
	var w wireReading

	dec := json.NewDecoder(bytes.NewReader(payload))
	if err := dec.Decode(&w); err != nil {
		return Reading{}, fmt.Errorf("%w: %w", ErrMalformedReading, err)
	}
	if dec.More() {
		return Reading{}, fmt.Errorf("%w: trailing data after object", ErrMalformedReading)
	}

	if w.Data == nil {
		return Reading{}, fmt.Errorf("%w: missing data field", ErrMalformedReading)
	}
	if w.RSSI == nil {
		return Reading{}, fmt.Errorf("%w: missing rssi field", ErrMalformedReading)
	}
	if math.IsNaN(*w.RSSI) || math.Abs(*w.RSSI) > math.MaxInt32 {
		return Reading{}, fmt.Errorf("%w: rssi %v out of range", ErrMalformedReading, *w.RSSI)
	}

	return Reading{Data: *w.Data, RSSI: int(math.Round(*w.RSSI))}, nil
}

// MarshalPayload encodes r the way the reader sends it: {"rssi":n,"data":"..."}.
func (r Reading) MarshalPayload() ([]byte, error) {
	rssi := float64(r.RSSI)
	return json.Marshal(wireReading{RSSI: &rssi, Data: &r.Data})
}
