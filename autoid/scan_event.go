package autoid

import "time"

const (
	// CodeTypeRawString is the code type of scan data delivered as a plain string.
	CodeTypeRawString = "RAW:STRING"

	// DefaultPowerLevel is the antenna power level reported with every sighting.
	DefaultPowerLevel = 3
)

// ScanEvent is raised once for every reading processed while a scan session is active.
type ScanEvent struct {
	// Sequence increases by one for every event raised by the same controller, starting at 1.
	Sequence   uint64 `json:"seq"`
	CodeType   string `json:"code_type"`
	Data       string `json:"data"`
	RSSI       int    `json:"rssi"`
	PowerLevel int    `json:"power_level"`
	// Timestamp is when the event was raised.
	Timestamp time.Time `json:"timestamp"`
	// SightingTimestamp is when the tag was sighted.
	SightingTimestamp time.Time `json:"sighting_timestamp"`
}
