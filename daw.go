// Package daw contains the data model of a project (tracks, clips and notes),
// the pure time conversions and grid snapping shared by all editors, and the
// contract a sound engine has to satisfy to play a project.
package daw

import (
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
)

// Error kinds attached to errors with ftag.With. ErrorKind reads them back.
const (
	EngineUnavailable    ftag.Kind = "engine_unavailable"
	InvalidTimeRange     ftag.Kind = "invalid_time_range"
	MalformedImport      ftag.Kind = "malformed_import"
	UnresolvedInstrument ftag.Kind = "unresolved_instrument"
)

// ErrorKind returns the kind tag attached to err.
func ErrorKind(err error) ftag.Kind {
	if err == nil {
		return ""
	}
	return ftag.Get(err)
}

// UserMessage returns the user-facing description attached to err with
// fmsg.WithDesc, or "" if there is none.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	return fmsg.GetIssue(err)
}
