package autoid

import "time"

// StatusMessage is the document adapters publish when the device status changes.
type StatusMessage struct {
	Status DeviceStatus `json:"status"`
	Code   int32        `json:"code"`
	Time   time.Time    `json:"ts"`
}

// NewStatusMessage creates the status document for status observed at ts.
func NewStatusMessage(status DeviceStatus, ts time.Time) StatusMessage {
	return StatusMessage{Status: status, Code: int32(status), Time: ts}
}

// CommandReply is the outcome of a scan command issued through an adapter.
type CommandReply struct {
	// Status is the device status after the command was applied.
	Status     DeviceStatus `json:"status"`
	Result     string       `json:"result"`
	ResultCode ResultCode   `json:"result_code"`
	Error      string       `json:"error,omitempty"`
}

// OK reports whether the command was accepted.
func (r CommandReply) OK() bool {
	return r.ResultCode == ResultSuccess && r.Error == ""
}

// StartScanReply issues StartScan on cmd and describes the outcome.
func StartScanReply(cmd Commander, autoStop bool) CommandReply {
	code, err := cmd.StartScan(autoStop)
	return newCommandReply(cmd, code, err)
}

// StopScanReply issues StopScan on cmd and describes the outcome.
// A rejected stop is reported with ResultDeviceNotReady.
func StopScanReply(cmd Commander) CommandReply {
	code := ResultSuccess
	err := cmd.StopScan()
	if err != nil {
		code = ResultDeviceNotReady
	}

	return newCommandReply(cmd, code, err)
}

func newCommandReply(cmd Commander, code ResultCode, err error) CommandReply {
	reply := CommandReply{
		Status:     cmd.DeviceStatus(),
		Result:     code.String(),
		ResultCode: code,
	}
	if err != nil {
		reply.Error = err.Error()
	}

	return reply
}
