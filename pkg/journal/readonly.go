package journal

// readOnly forwards reads and drops writes.
type readOnly struct {
	inner Journal
}

// ReadOnly wraps j so that AddEntry and Flush do nothing while ReadEntries
// still reports the wrapped journal's entries. Uninstall runs use it so the
// reversed workflow can be replayed without touching the journal on disk.
func ReadOnly(j Journal) Journal {
	if ro, ok := j.(*readOnly); ok {
		return ro
	}
	return &readOnly{inner: j}
}

func (r *readOnly) AddEntry(Kind, string) {}

func (r *readOnly) ReadEntries(kind Kind) []string {
	return r.inner.ReadEntries(kind)
}

func (r *readOnly) Flush() error {
	return nil
}
