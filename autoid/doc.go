// Package autoid defines the domain model shared by the reader link, the scan session controller
// and the information-model adapters: device status, readings decoded from the reader wire
// protocol, scan events, command result codes and the Adapter notification contract.
//
// Data flow:
//
//	reader --TCP--> frame codec --payload--> ParseReading --Reading--> scan controller
//	scan controller --ScanEvent / DeviceStatus--> Adapter
//
// Commands flow the other way: an Adapter calls StartScan / StopScan on a Commander and maps the
// returned ResultCode and error onto its own protocol.
package autoid
