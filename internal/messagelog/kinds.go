package messagelog

// UserMessages describes UserMessageLog records
var UserMessages = Kind[*UserMessageLog]{
	Name: "user_message_log",
	New:  func() *UserMessageLog { return &UserMessageLog{} },
	Clone: func(r *UserMessageLog) *UserMessageLog {
		c := *r
		return &c
	},
	Columns: withLogColumns(map[string]Column[*UserMessageLog]{
		"backend":  {Name: "backend", Get: func(r *UserMessageLog) any { return r.Backend }},
		"endpoint": {Name: "endpoint", Get: func(r *UserMessageLog) any { return r.Endpoint }},
	}),
}

// SignalMessages describes SignalMessageLog records
var SignalMessages = Kind[*SignalMessageLog]{
	Name: "signal_message_log",
	New:  func() *SignalMessageLog { return &SignalMessageLog{} },
	Clone: func(r *SignalMessageLog) *SignalMessageLog {
		c := *r
		return &c
	},
	Columns: withLogColumns(map[string]Column[*SignalMessageLog]{
		"refToMessageId": {Name: "ref_to_message_id", Get: func(r *SignalMessageLog) any { return r.RefToMessageID }},
	}),
}

func withLogColumns[R Record](extra map[string]Column[R]) map[string]Column[R] {
	cols := map[string]Column[R]{
		"messageId":     {Name: "message_id", Get: func(r R) any { return r.Base().MessageID }},
		"mshRole":       {Name: "msh_role", Get: func(r R) any { return r.Base().MSHRole }},
		"messageStatus": {Name: "status", Get: func(r R) any { return r.Base().Status }},
		"mpc":           {Name: "mpc", Get: func(r R) any { return r.Base().Mpc }},
		"received":      {Name: "received", Get: func(r R) any { return r.Base().Received }},
		"downloaded":    {Name: "downloaded", Get: func(r R) any { return r.Base().Downloaded }},
		"deleted":       {Name: "deleted", Get: func(r R) any { return r.Base().Deleted }},
		"failed":        {Name: "failed", Get: func(r R) any { return r.Base().Failed }},
	}
	for k, v := range extra {
		cols[k] = v
	}
	return cols
}
