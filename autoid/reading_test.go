package autoid

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseReading(t *testing.T) {
	tests := []struct {
		description string
		input       string
		expected    Reading
		expectedErr bool
	}{
		{description: "reader order", input: `{"rssi":42,"data":"A1"}`, expected: Reading{Data: "A1", RSSI: 42}},
		{description: "data first", input: `{"data":"A1","rssi":42}`, expected: Reading{Data: "A1", RSSI: 42}},
		{description: "negative rssi", input: `{"data":"E200","rssi":-61}`, expected: Reading{Data: "E200", RSSI: -61}},
		{description: "fractional rssi rounds", input: `{"data":"x","rssi":41.6}`, expected: Reading{Data: "x", RSSI: 42}},
		{description: "empty data is legal", input: `{"data":"","rssi":0}`, expected: Reading{Data: "", RSSI: 0}},
		{description: "extra fields ignored", input: `{"data":"x","rssi":1,"ant":2}`, expected: Reading{Data: "x", RSSI: 1}},
		{description: "empty payload", input: ``, expectedErr: true},
		{description: "not json", input: `hello`, expectedErr: true},
		{description: "array", input: `[1,2]`, expectedErr: true},
		{description: "null", input: `null`, expectedErr: true},
		{description: "missing data", input: `{"rssi":1}`, expectedErr: true},
		{description: "missing rssi", input: `{"data":"x"}`, expectedErr: true},
		{description: "string rssi", input: `{"data":"x","rssi":"1"}`, expectedErr: true},
		{description: "numeric data", input: `{"data":1,"rssi":1}`, expectedErr: true},
		{description: "huge rssi", input: `{"data":"x","rssi":1e30}`, expectedErr: true},
		{description: "trailing object", input: `{"data":"x","rssi":1}{}`, expectedErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			r, err := ParseReading([]byte(tt.input))
			if tt.expectedErr {
				require.ErrorIs(t, err, ErrMalformedReading)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.expected, r)
		})
	}
}

func TestReading_MarshalPayload(t *testing.T) {
	require := require.New(t)

	payload, err := Reading{Data: "A1", RSSI: 42}.MarshalPayload()
	require.NoError(err)
	require.JSONEq(`{"data":"A1","rssi":42}`, string(payload))
	require.Equal(`{"rssi":42,"data":"A1"}`, string(payload))

	r, err := ParseReading(payload)
	require.NoError(err)
	require.Equal(Reading{Data: "A1", RSSI: 42}, r)
}

func TestDeviceStatus(t *testing.T) {
	require := require.New(t)

	require.Equal(int32(0), int32(StatusIdle))
	require.Equal(int32(1), int32(StatusError))
	require.Equal(int32(2), int32(StatusScanning))
	require.Equal(int32(3), int32(StatusBusy))
	require.Equal("unknown(9)", DeviceStatus(9).String())
	require.False(DeviceStatus(-1).IsValid())

	out, err := json.Marshal(map[string]DeviceStatus{"status": StatusScanning})
	require.NoError(err)
	require.Equal(`{"status":"scanning"}`, string(out))

	var decoded struct {
		Status DeviceStatus `json:"status"`
	}
	require.NoError(json.Unmarshal([]byte(`{"status":"busy"}`), &decoded))
	require.Equal(StatusBusy, decoded.Status)
	require.Error(json.Unmarshal([]byte(`{"status":"sleeping"}`), &decoded))

	_, err = json.Marshal(DeviceStatus(42))
	require.Error(err)
}

func TestCommandErrors(t *testing.T) {
	require := require.New(t)

	for _, err := range []error{ErrScanRunning, ErrLinkDown, ErrScanNotRunning} {
		require.ErrorIs(err, ErrInvalidState)
		require.Contains(err.Error(), "invalid state")
	}
	require.NotErrorIs(ErrMalformedReading, ErrInvalidState)

	require.Equal("device-not-ready", ResultDeviceNotReady.String())
	require.Equal(int32(17), int32(ResultDeviceNotReady))
}

func TestAdapters_FanOut(t *testing.T) {
	require := require.New(t)

	var statuses []DeviceStatus
	var events []ScanEvent

	a := Adapters{
		AdapterFuncs{OnDeviceStatus: func(s DeviceStatus) { statuses = append(statuses, s) }},
		nil,
		NopAdapter{},
		AdapterFuncs{OnScanEvent: func(e ScanEvent) { events = append(events, e) }},
		AdapterFuncs{OnDeviceStatus: func(s DeviceStatus) { statuses = append(statuses, s) }},
	}

	a.DeviceStatusChanged(StatusScanning)
	a.ScanEvent(ScanEvent{Sequence: 1, Data: "A1"})

	require.Equal([]DeviceStatus{StatusScanning, StatusScanning}, statuses)
	require.Len(events, 1)
	require.Equal("A1", events[0].Data)
}

func TestDefaultDeviceInfo(t *testing.T) {
	info := DefaultDeviceInfo()
	require.Equal(t, "Scanner", info.Name)
	require.Equal(t, "12345678", info.SerialNumber)
}
