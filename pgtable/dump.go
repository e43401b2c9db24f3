package pgtable

import (
	"fmt"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/mesokern/paging/pte"
)

type dumpRun struct {
	virt   pte.VirtAddr
	phys   pte.PhysAddr
	size   uint64
	blocks int
	valid  bool
	attrs  pte.Entry
}

func (r *dumpRun) extends(valid bool, attrs pte.Entry, phys pte.PhysAddr) bool {
	if r.valid != valid {
		return false
	}
	if !valid {
		return true
	}
	return r.attrs == attrs && r.phys+pte.PhysAddr(r.size) == phys
}

func (r *dumpRun) print(arr *jwriter.ArrayState) {
	obj := arr.Object()
	defer obj.End()

	obj.Name("Address").String(fmt.Sprintf("%#x", r.virt))
	obj.Name("Size").String(fmt.Sprintf("%#x", r.size))
	obj.Name("Mapped").Bool(r.valid)
	if !r.valid {
		return
	}

	obj.Name("Physical").String(fmt.Sprintf("%#x", r.phys))
	obj.Name("Blocks").Int(r.blocks)
	obj.Name("Attribute").String(r.attrs.PageAttribute().String())
	obj.Name("Shareable").String(r.attrs.Shareable().String())
	obj.Name("Present").Bool(r.attrs.IsMapped())
	obj.Name("ReadOnly").Bool(r.attrs.IsReadOnly())
	obj.Name("User").Bool(r.attrs.IsUserAccessible())
	obj.Name("UserExecute").Bool(!r.attrs.IsUserExecuteNever())
	obj.Name("KernelExecute").Bool(!r.attrs.IsPrivilegedExecuteNever())
	obj.Name("Global").Bool(r.attrs.IsGlobal())
}

// Dump writes a JSON description of [start, start+size): one object per run of blocks that share
// attributes and map consecutive physical memory, and one per unmapped gap
func (s *AddressSpace) Dump(writer *jwriter.Writer, start pte.VirtAddr, size uint64) {
	s.assertLocked()

	obj := writer.Object()
	defer obj.End()

	obj.Name("Start").String(fmt.Sprintf("%#x", start))
	obj.Name("Size").String(fmt.Sprintf("%#x", size))
	obj.Name("ASID").Int(int(s.asid))
	obj.Name("Kernel").Bool(s.isKernel)
	obj.Name("Tables").Int(s.CountPageTables())

	arr := obj.Name("Ranges").Array()
	defer arr.End()

	var run *dumpRun
	end := uint64(start) + size
	for virt := uint64(start); virt < end; {
		entry, ctx, valid := s.beginTraversal(pte.VirtAddr(virt))

		step := end - virt
		if entry.BlockSize != 0 {
			if rest := entry.BlockSize - virt&(entry.BlockSize-1); rest < step {
				step = rest
			}
		}

		var attrs pte.Entry
		if valid {
			attrs = s.slot(&ctx, ctx.level).Load().TemplateForMerge()
		}

		if run != nil && run.extends(valid, attrs, entry.PhysAddr) {
			run.size += step
			run.blocks++
		} else {
			if run != nil {
				run.print(&arr)
			}
			run = &dumpRun{
				virt:   pte.VirtAddr(virt),
				phys:   entry.PhysAddr,
				size:   step,
				blocks: 1,
				valid:  valid,
				attrs:  attrs,
			}
		}

		virt += step
	}

	if run != nil {
		run.print(&arr)
	}
}
