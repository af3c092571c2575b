// Package conversation holds the local mirror of the host-owned
// conversation store. The log is not authoritative: it mutates only in
// response to host push events (or the initial load) and never reorders
// or re-sorts what the host delivered.
package conversation

type Role string

const (
	RoleInterviewer Role = "interviewer"
	RoleInterviewee Role = "interviewee"
)

// Other returns the opposite of the two fixed roles.
func (r Role) Other() Role {
	if r == RoleInterviewer {
		return RoleInterviewee
	}
	return RoleInterviewer
}

// Message mirrors one canonical-store entry. ID and Timestamp are
// host-assigned and immutable; Text and Edited may change on update
// events.
type Message struct {
	ID        string `json:"id"`
	Role      Role   `json:"speaker"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"` // ms since epoch, host clock
	Edited    bool   `json:"edited"`
}

// DuplicatePolicy decides what Append does when the host re-delivers a
// message ID already present in the log.
type DuplicatePolicy int

const (
	// DuplicateReject drops the re-delivery; the log stays keyed by
	// unique host IDs. This is the wired default.
	DuplicateReject DuplicatePolicy = iota
	// DuplicateAppend appends blindly, mirroring the host verbatim even
	// when it repeats itself.
	DuplicateAppend
	// DuplicateMerge folds Text and Edited into the existing entry.
	DuplicateMerge
)

// Log is an insertion-ordered message list. It is not safe for
// concurrent use; the session controller serializes access.
type Log struct {
	policy DuplicatePolicy
	msgs   []Message
}

func NewLog(policy DuplicatePolicy) *Log {
	return &Log{policy: policy}
}

// Append applies one message-added delivery under the duplicate policy.
// Reports whether the log changed.
func (l *Log) Append(m Message) bool {
	if l.policy != DuplicateAppend {
		for i := range l.msgs {
			if l.msgs[i].ID == m.ID {
				if l.policy == DuplicateMerge {
					l.msgs[i].Text = m.Text
					l.msgs[i].Edited = m.Edited
					return true
				}
				return false
			}
		}
	}
	l.msgs = append(l.msgs, m)
	return true
}

// Update replaces the mutable fields of the entry with m's ID. The
// stored ID and Timestamp are preserved. Unknown IDs are ignored.
func (l *Log) Update(m Message) bool {
	for i := range l.msgs {
		if l.msgs[i].ID == m.ID {
			l.msgs[i].Text = m.Text
			l.msgs[i].Edited = m.Edited
			return true
		}
	}
	return false
}

// Replace swaps in a full snapshot, used for the initial load.
func (l *Log) Replace(msgs []Message) {
	l.msgs = append(l.msgs[:0:0], msgs...)
}

func (l *Log) Clear() {
	l.msgs = nil
}

func (l *Log) Len() int { return len(l.msgs) }

// Messages returns a copy; callers may hold it across further mutations.
func (l *Log) Messages() []Message {
	return append([]Message(nil), l.msgs...)
}
