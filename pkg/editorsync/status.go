package editorsync

import (
	"github.com/grovetools/editsync/pkg/bootstrap"
	"github.com/grovetools/editsync/pkg/models"
)

// Status is a point-in-time view of a session.
type Status struct {
	Bootstrap        bootstrap.State  `json:"bootstrap"`
	Error            string           `json:"error,omitempty"`
	Runtime          string           `json:"runtime,omitempty"`
	RuntimeVersion   string           `json:"runtimeVersion,omitempty"`
	ActivePath       string           `json:"activePath,omitempty"`
	CustomEditor     string           `json:"customEditor,omitempty"`
	Cursor           *models.Position `json:"cursor,omitempty"`
	Width            int              `json:"width"`
	Height           int              `json:"height"`
	ReadOnly         bool             `json:"readOnly"`
	VimEnabled       *bool            `json:"vimEnabled,omitempty"`
	Busy             bool             `json:"busy"`
	Mailbox          int              `json:"mailbox"`
	PendingCallbacks int              `json:"pendingCallbacks"`
	Modules          int              `json:"modules"`
	Disposed         bool             `json:"disposed"`
}

// State reports the session status.
func (s *Session) State() Status {
	st := Status{
		Bootstrap:        s.seq.State(),
		Busy:             s.gate.Busy(),
		PendingCallbacks: s.registry.Pending(),
		Modules:          len(s.docs.Paths()),
	}
	if err := s.seq.Err(); err != nil {
		st.Error = err.Error()
	}
	if handle, ok := s.seq.Handle(); ok {
		st.Runtime = handle.Runtime.Name
		st.RuntimeVersion = handle.Runtime.Version
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	st.ActivePath = s.activePath
	st.Width, st.Height = s.width, s.height
	st.ReadOnly = s.readOnly
	st.Mailbox = len(s.mailbox)
	st.Disposed = s.disposed
	if s.customEditor != nil {
		st.CustomEditor = s.customEditor.Name()
	}
	if s.cursor != nil {
		c := *s.cursor
		st.Cursor = &c
	}
	if s.vimEnabled != nil {
		v := *s.vimEnabled
		st.VimEnabled = &v
	}
	return st
}
