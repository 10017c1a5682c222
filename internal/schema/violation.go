package schema

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownFormat is returned when a file's format cannot be determined.
var ErrUnknownFormat = errors.New("schema: unknown format")

// Violation is one problem found while loading a declaration.
type Violation struct {
	Message string `json:"message"`
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
}

func (v *Violation) String() string {
	if v.File == "" && v.Line == 0 {
		return v.Message
	}
	return fmt.Sprintf("%s %s:%d:%d", v.Message, v.File, v.Line, v.Column)
}

// LoadError collects every violation of a document.
type LoadError []*Violation

func (e LoadError) Error() string {
	var b strings.Builder
	b.WriteString("violations found:\n")
	for _, v := range e {
		b.WriteString("- ")
		b.WriteString(v.String())
		b.WriteString("\n")
	}
	return b.String()
}

type violations struct {
	file string
	list LoadError
}

func (vs *violations) add(line, column int, format string, args ...any) {
	vs.list = append(vs.list, &Violation{
		Message: fmt.Sprintf(format, args...),
		File:    vs.file,
		Line:    line,
		Column:  column,
	})
}

func (vs *violations) err() error {
	if len(vs.list) == 0 {
		return nil
	}
	return vs.list
}
