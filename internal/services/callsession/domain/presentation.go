package domain

// CallUI carries what the in-call UI needs to render a session.
type CallUI struct {
	ChannelName string
	CallerName  string
	CallerID    string
	Muted       bool
}

// Notification is the rendered "caller is speaking" notification.
type Notification struct {
	ChannelName string
	CallerID    string
	CallerName  string
	Title       string
	Body        string
}

// CallUI returns the UI payload for the session.
func (s Session) CallUI() CallUI {
	return CallUI{
		ChannelName: s.ChannelName,
		CallerName:  s.CallerName,
		CallerID:    s.CallerID,
		Muted:       s.Muted,
	}
}
