package arena

import "errors"

var (
	// ErrNoMemory indicates no arena could satisfy the request and the OS
	// fallback was disabled, unavailable, or refused.
	ErrNoMemory = errors.New("arena: out of memory")

	// ErrBadMemID indicates a free with a memid that decodes to a
	// nonexistent arena or an out-of-range block index.
	ErrBadMemID = errors.New("arena: invalid memory id")

	// ErrDoubleFree indicates a free of blocks that were not in use.
	ErrDoubleFree = errors.New("arena: block already freed")

	// ErrTooManyArenas indicates the arena registry is full.
	ErrTooManyArenas = errors.New("arena: too many arenas")

	// ErrTooSmall indicates a region below one block or a zero-size
	// request.
	ErrTooSmall = errors.New("arena: size below one block")
)
