package events

import "time"

// SchemaReload is emitted after a watched schema file was reloaded.
// Err is set when the new file could not be loaded; the previous
// schema stays active in that case.
type SchemaReload struct {
	Path     string
	Err      error
	Duration time.Duration
}
