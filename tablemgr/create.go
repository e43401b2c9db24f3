package tablemgr

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/mesokern/paging/internal/utils"
	"github.com/mesokern/paging/memutils"
	"github.com/mesokern/paging/pte"
	"github.com/vkngwrapper/core/v2/common"
	"golang.org/x/exp/slog"
)

// CreateFlags indicate specific table manager behaviors to activate or deactivate
type CreateFlags int32

var createFlagsMapping = common.NewFlagStringMapping[CreateFlags]()

func (f CreateFlags) Register(str string) {
	createFlagsMapping.Register(f, str)
}
func (f CreateFlags) String() string {
	return createFlagsMapping.FlagsToString(f)
}

const (
	// CreateExternallySynchronized disables the internal mutex. The consumer must guarantee that the
	// manager is used from one thread at a time.
	CreateExternallySynchronized CreateFlags = 1 << iota
)

func init() {
	CreateExternallySynchronized.Register("CreateExternallySynchronized")
}

// CreateOptions describes the heap a Manager hands tables out from
type CreateOptions struct {
	Flags CreateFlags
	// HeapBase is the physical address of the first table in the heap. It must be page aligned.
	HeapBase pte.PhysAddr
	// HeapPages is the number of tables in the heap
	HeapPages int
}

// New creates a Manager over an empty table heap
func New(logger *slog.Logger, options CreateOptions) (*Manager, error) {
	logger = utils.LoggerOrDiscard(logger)
	if !memutils.IsAligned(uint64(options.HeapBase), pte.PageSize) {
		return nil, errors.Errorf("table heap base %#x is not page aligned", options.HeapBase)
	}
	if options.HeapPages <= 0 {
		return nil, errors.Errorf("table heap must contain at least one page, got %d", options.HeapPages)
	}

	m := &Manager{
		logger:    logger,
		heapBase:  options.HeapBase,
		tables:    make([]pte.Table, options.HeapPages),
		refCounts: make([]int, options.HeapPages),
		allocated: make([]bool, options.HeapPages),
		freeSlots: make([]int, 0, options.HeapPages),
		adopted:   swiss.NewMap[pte.PhysAddr, *pte.Table](4),
		mutex: utils.OptionalMutex{
			UseMutex: options.Flags&CreateExternallySynchronized == 0,
		},
	}

	for i := options.HeapPages - 1; i >= 0; i-- {
		m.freeSlots = append(m.freeSlots, i)
	}

	logger.Debug("TableManager::New",
		slog.String("HeapBase", fmt.Sprintf("%#x", options.HeapBase)),
		slog.Int("HeapPages", options.HeapPages),
		slog.String("Flags", options.Flags.String()))

	return m, nil
}
