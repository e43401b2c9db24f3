package physmem

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

// CreateFlags indicate specific memory manager behaviors to activate or deactivate
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

const defaultMaxGroupBlocks = 64

// CreateOptions describes the physical heap whose pages a Manager reference counts
type CreateOptions struct {
	Flags CreateFlags
	// HeapBase is the first physical address of the heap. It must be page aligned.
	HeapBase pte.PhysAddr
	// HeapPages is the number of pages in the heap
	HeapPages int
	// MaxGroupBlocks bounds page groups created through NewPageGroup. Zero selects a default of 64.
	MaxGroupBlocks int
}

// New creates a Manager in which every heap page starts out unreferenced
func New(logger *slog.Logger, options CreateOptions) (*Manager, error) {
	logger = utils.LoggerOrDiscard(logger)

	if !memutils.IsAligned(uint64(options.HeapBase), pte.PageSize) {
		return nil, errors.Errorf("physical heap base %#x is not page aligned", options.HeapBase)
	}
	if options.HeapPages <= 0 {
		return nil, errors.Errorf("physical heap must contain at least one page, got %d", options.HeapPages)
	}
	if options.MaxGroupBlocks < 0 {
		return nil, errors.Errorf("max group blocks must not be negative, got %d", options.MaxGroupBlocks)
	}

	maxGroupBlocks := options.MaxGroupBlocks
	if maxGroupBlocks == 0 {
		maxGroupBlocks = defaultMaxGroupBlocks
	}

	logger.Debug("MemoryManager::New",
		slog.String("HeapBase", fmt.Sprintf("%#x", options.HeapBase)),
		slog.Int("HeapPages", options.HeapPages),
		slog.Int("MaxGroupBlocks", maxGroupBlocks))

	return &Manager{
		logger:         logger,
		heapBase:       options.HeapBase,
		heapPages:      options.HeapPages,
		maxGroupBlocks: maxGroupBlocks,
		refCounts:      swiss.NewMap[pte.PhysAddr, int](64),
		mutex: utils.OptionalMutex{
			UseMutex: options.Flags&CreateExternallySynchronized == 0,
		},
	}, nil
}
