package readerlink

import "github.com/arloliu/go-autoid/autoid"

// Handler receives the events of a reader link.
//
// Both methods are called from link goroutines, never concurrently with each other for the same
// connection, and a disconnect is reported only after the last reading of that connection.
// Implementations must not call Close on the link from within a handler.
type Handler interface {
	// HandleLinkState reports connection health. false may be reported repeatedly while the
	// link keeps failing to connect.
	HandleLinkState(connected bool)
	// HandleReading delivers one parsed reading, in stream order.
	HandleReading(r autoid.Reading)
}

// HandlerFuncs adapts plain functions to a Handler. Nil functions are skipped.
type HandlerFuncs struct {
	OnLinkState func(connected bool)
	OnReading   func(r autoid.Reading)
}

var _ Handler = HandlerFuncs{}

func (f HandlerFuncs) HandleLinkState(connected bool) {
	if f.OnLinkState != nil {
		f.OnLinkState(connected)
	}
}

func (f HandlerFuncs) HandleReading(r autoid.Reading) {
	if f.OnReading != nil {
		f.OnReading(r)
	}
}
