package events

import "time"

// CompileStart is emitted before a populate request is compiled.
type CompileStart struct {
	Schema   string
	Populate int
	Sort     int
}

// CompileFinish is emitted after a populate request is compiled.
type CompileFinish struct {
	Schema       string
	Accepted     int
	Dropped      []string
	DroppedSorts []string
	Duration     time.Duration
}
