package asid

import (
	"context"
	"fmt"
	"math/bits"

	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/mesokern/paging/internal/utils"
	"github.com/mesokern/paging/memutils"
	"github.com/mesokern/paging/pte"
	"github.com/vkngwrapper/core/v2/common"
	"golang.org/x/exp/slog"
)

const (
	// Count is the number of identifiers an 8-bit ASID can express
	Count = 256
	// Kernel is reserved for the kernel address space and never handed out
	Kernel uint8 = 0
)

const wordBits = 64

// CreateFlags indicate specific registry behaviors to activate or deactivate
type CreateFlags int32

var createFlagsMapping = common.NewFlagStringMapping[CreateFlags]()

func (f CreateFlags) Register(str string) {
	createFlagsMapping.Register(f, str)
}
func (f CreateFlags) String() string {
	return createFlagsMapping.FlagsToString(f)
}

const (
	// CreateExternallySynchronized disables the internal mutex
	CreateExternallySynchronized CreateFlags = 1 << iota
)

func init() {
	CreateExternallySynchronized.Register("CreateExternallySynchronized")
}

type CreateOptions struct {
	Flags CreateFlags
}

// Registry hands out address-space identifiers and remembers the root table registered for each
type Registry struct {
	logger *slog.Logger
	mutex  utils.OptionalRWMutex

	used  [Count / wordBits]uint64
	hint  int
	inUse int

	roots *swiss.Map[uint8, pte.PhysAddr]
}

func NewRegistry(logger *slog.Logger, options CreateOptions) *Registry {
	r := &Registry{
		logger: utils.LoggerOrDiscard(logger),
		mutex: utils.OptionalRWMutex{
			UseMutex: options.Flags&CreateExternallySynchronized == 0,
		},
		hint:  1,
		roots: swiss.NewMap[uint8, pte.PhysAddr](16),
	}
	r.setUsed(int(Kernel))
	return r
}

func (r *Registry) isUsed(id int) bool {
	return r.used[id/wordBits]&(1<<(id%wordBits)) != 0
}

func (r *Registry) setUsed(id int) {
	r.used[id/wordBits] |= 1 << (id % wordBits)
}

func (r *Registry) clearUsed(id int) {
	r.used[id/wordBits] &^= 1 << (id % wordBits)
}

// findFree returns the first free id at or after start, wrapping around once
func (r *Registry) findFree(start int) (int, bool) {
	for scanned := 0; scanned < Count; {
		id := (start + scanned) % Count
		word := id / wordBits
		free := ^r.used[word] >> (id % wordBits)
		if free != 0 {
			candidate := id + bits.TrailingZeros64(free)
			if candidate < Count {
				return candidate, true
			}
		}
		scanned += wordBits - id%wordBits
	}
	return 0, false
}

// Reserve takes the next free identifier, starting the search after the one handed out last
func (r *Registry) Reserve() (uint8, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	id, ok := r.findFree(r.hint)
	if !ok {
		r.logger.LogAttrs(context.Background(), slog.LevelWarn, "address-space identifiers exhausted",
			slog.Int("InUse", r.inUse))
		return 0, errors.WithStack(memutils.ErrAddressSpaceIDsExhausted)
	}

	r.setUsed(id)
	r.inUse++
	r.hint = (id + 1) % Count
	return uint8(id), nil
}

// Release returns id to the pool. Releasing the kernel identifier or a free one panics.
func (r *Registry) Release(id uint8) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if id == Kernel || !r.isUsed(int(id)) {
		panic(fmt.Sprintf("releasing address-space identifier %d which is not reserved", id))
	}
	r.clearUsed(int(id))
	r.inUse--
}

// Register records the root table of the address space that owns id
func (r *Registry) Register(id uint8, root pte.PhysAddr) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if !r.isUsed(int(id)) {
		panic(fmt.Sprintf("registering a root for unreserved address-space identifier %d", id))
	}
	r.roots.Put(id, root)
}

func (r *Registry) Unregister(id uint8) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.roots.Delete(id)
}

// Root returns the root table registered for id
func (r *Registry) Root(id uint8) (pte.PhysAddr, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return r.roots.Get(id)
}

// InUse returns the number of identifiers currently reserved by processes
func (r *Registry) InUse() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return r.inUse
}
