package session

// NotificationLedger is the ordered collection of completion notifications,
// most recent first. It grows without bound; acceptable for a session-local
// ledger.
type NotificationLedger struct {
	items []Notification
}

// Append prepends a record. No deduplication.
func (l *NotificationLedger) Append(n Notification) {
	l.items = append([]Notification{n}, l.items...)
}

// Dismiss removes the record with the given id. Unknown ids are a no-op.
func (l *NotificationLedger) Dismiss(id string) {
	for i, n := range l.items {
		if n.ID == id {
			l.items = append(l.items[:i], l.items[i+1:]...)
			return
		}
	}
}

// MarkAllRead flags every record as read. Idempotent.
func (l *NotificationLedger) MarkAllRead() {
	for i := range l.items {
		l.items[i].IsRead = true
	}
}

// UnreadCount derives the number of unread records; it is never stored.
func (l *NotificationLedger) UnreadCount() int {
	count := 0
	for _, n := range l.items {
		if !n.IsRead {
			count++
		}
	}
	return count
}

// Get looks up a record by id.
func (l *NotificationLedger) Get(id string) (Notification, bool) {
	for _, n := range l.items {
		if n.ID == id {
			return n, true
		}
	}
	return Notification{}, false
}

// Notifications returns a copy of the ledger, most recent first.
func (l *NotificationLedger) Notifications() []Notification {
	return append([]Notification(nil), l.items...)
}
