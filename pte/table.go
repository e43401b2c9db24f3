package pte

// Table is one page of paging entries
type Table [EntriesPerTable]Entry

// Clear empties every slot
func (t *Table) Clear() {
	for i := range t {
		t[i].Store(EmptyEntry)
	}
}

// IsEmpty reports whether no slot holds a table or block
func (t *Table) IsEmpty() bool {
	for i := range t {
		if !t[i].Load().IsEmpty() {
			return false
		}
	}
	return true
}

// Entry returns the slot at level that addr resolves through
func (t *Table) Entry(level Level, addr VirtAddr) *Entry {
	return &t[level.Index(addr)]
}
