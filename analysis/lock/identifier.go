package lock

import (
	"fmt"
	"strconv"

	"github.com/lokeshkvn/cpachecker/utils"
)

// Kind discriminates between the flavors of lockable resources the
// analysis can name.
type Kind uint8

const (
	// KindGlobal names a package-level variable.
	KindGlobal Kind = iota
	// KindLocal names a function-local allocation site.
	KindLocal
	// KindField names a struct field reached from some base lock identity.
	KindField
	// KindIndexed names an element of an array or slice of locks.
	KindIndexed
	// KindAnnotated names a lock introduced by an annotation configuration
	// rather than discovered in the program text.
	KindAnnotated
)

// ID is the identity of a single lockable resource. IDs are plain
// comparable values: two IDs denote the same lock exactly when they are
// equal with ==.
type ID struct {
	// Name is the qualified name of the variable or allocation site.
	// Field locks append the field path to the base name.
	Name string
	Kind Kind
	// Index disambiguates indexed locks. It is NoIndex for all other kinds,
	// and for indexed locks with a statically unknown index.
	Index int
}

// NoIndex is the Index of every non-indexed lock identifier.
const NoIndex = -1

// GlobalID names a package-level lock variable.
func GlobalID(name string) ID {
	return ID{Name: name, Kind: KindGlobal, Index: NoIndex}
}

// LocalID names a lock allocated at a local allocation site.
func LocalID(site string) ID {
	return ID{Name: site, Kind: KindLocal, Index: NoIndex}
}

// FieldID names a lock held in a struct field of a base identity.
func FieldID(base ID, field string) ID {
	return ID{Name: base.Name + "." + field, Kind: KindField, Index: NoIndex}
}

// IndexedID names a lock held in an element of an array of locks.
// Pass NoIndex when the element index is not statically known.
func IndexedID(base ID, index int) ID {
	return ID{Name: base.Name, Kind: KindIndexed, Index: index}
}

// AnnotatedID names a lock that only exists in the annotation
// configuration, e. g. a named kernel lock.
func AnnotatedID(name string) ID {
	return ID{Name: name, Kind: KindAnnotated, Index: NoIndex}
}

// Cmp establishes a total order on lock identifiers: by name, then kind,
// then index. The order is used for canonical iteration, comparison and
// difference output.
func (id ID) Cmp(other ID) int {
	switch {
	case id.Name < other.Name:
		return -1
	case id.Name > other.Name:
		return 1
	case id.Kind != other.Kind:
		return int(id.Kind) - int(other.Kind)
	default:
		return id.Index - other.Index
	}
}

// Equal checks lock identifier equality.
func (id ID) Equal(other ID) bool {
	return id == other
}

// Hash computes the uint32 hash of a lock identifier.
func (id ID) Hash() uint32 {
	return utils.HashCombine(
		utils.StringHasher{}.Hash(id.Name),
		uint32(id.Kind),
		uint32(id.Index),
	)
}

func (id ID) String() string {
	if id.Kind == KindIndexed {
		idx := "*"
		if id.Index != NoIndex {
			idx = strconv.Itoa(id.Index)
		}
		return colorize.LockID(fmt.Sprintf("%s[%s]", id.Name, idx))
	}
	return colorize.LockID(id.Name)
}

// idHasher hashes IDs inside persistent maps and hash-based containers.
var idHasher = utils.HashableHasher[ID]()
