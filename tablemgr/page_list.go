package tablemgr

import "github.com/mesokern/paging/pte"

// PageList collects tables released during an operation. The tables stay out of the heap until
// the caller drains the list, so the operation that released them may pick them up again.
type PageList struct {
	pages []pte.PhysAddr
}

func (l *PageList) Push(table pte.PhysAddr) {
	l.pages = append(l.pages, table)
}

// Pop removes the most recently pushed table
func (l *PageList) Pop() (pte.PhysAddr, bool) {
	if len(l.pages) == 0 {
		return 0, false
	}

	table := l.pages[len(l.pages)-1]
	l.pages = l.pages[:len(l.pages)-1]
	return table, true
}

func (l *PageList) Len() int {
	return len(l.pages)
}

func (l *PageList) IsEmpty() bool {
	return len(l.pages) == 0
}
