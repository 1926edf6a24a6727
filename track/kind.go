package track

import "fmt"

// Kind is the lifecycle state of a ledger entry.
type Kind uint8

const (
	// KindEmpty marks a slot that was never used or whose blocks were
	// already freed. The zero value, so zeroed storage starts out Empty.
	KindEmpty Kind = iota

	// KindBlock is a plain on-disk block the page stopped citing; it is
	// freed at the next Resolve.
	KindBlock

	// KindOverflowActive is an overflow item the page still references.
	KindOverflowActive

	// KindOverflowDiscarded is an overflow item assumed dead since the last
	// ResetOverflow; freed at Resolve unless reactivated first.
	KindOverflowDiscarded
)

func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindBlock:
		return "block"
	case KindOverflowActive:
		return "overflow-active"
	case KindOverflowDiscarded:
		return "overflow-discarded"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}
