package directory

import "time"

func (m *Model) pushNotice(n Notice) {
	m.noticeID++
	n.ID = m.noticeID
	if n.At.IsZero() {
		n.At = time.Now()
	}

	// At most one blocking notice is pending: a newer one absorbs the
	// earlier ones, so the operator acknowledges once.
	if n.Blocking {
		kept := m.notices[:0]
		for _, old := range m.notices {
			if old.Blocking {
				n.Folded += old.Folded + 1
				continue
			}
			kept = append(kept, old)
		}
		m.notices = kept
	}
	m.notices = append(m.notices, n)

	// blocking notices are never evicted
	for len(m.notices) > maxNotices {
		drop := -1
		for i, old := range m.notices {
			if !old.Blocking {
				drop = i
				break
			}
		}
		if drop < 0 {
			break
		}
		m.notices = append(m.notices[:drop], m.notices[drop+1:]...)
	}
}

// Notices returns the pending notices, oldest first.
func (m *Model) Notices() []Notice {
	return m.notices
}

// Blocking returns the oldest notice that needs acknowledging.
func (m *Model) Blocking() (Notice, bool) {
	for _, n := range m.notices {
		if n.Blocking {
			return n, true
		}
	}
	return Notice{}, false
}

// Toast returns the newest non-blocking notice.
func (m *Model) Toast() (Notice, bool) {
	for i := len(m.notices) - 1; i >= 0; i-- {
		if !m.notices[i].Blocking {
			return m.notices[i], true
		}
	}
	return Notice{}, false
}

// Ack acknowledges the oldest blocking notice. It reports whether there was one.
func (m *Model) Ack() bool {
	for i, n := range m.notices {
		if n.Blocking {
			m.notices = append(m.notices[:i], m.notices[i+1:]...)
			return true
		}
	}
	return false
}

// Dismiss removes the non-blocking notice with id. Blocking notices only go
// away through Ack.
func (m *Model) Dismiss(id int) {
	for i, n := range m.notices {
		if n.ID == id && !n.Blocking {
			m.notices = append(m.notices[:i], m.notices[i+1:]...)
			return
		}
	}
}
