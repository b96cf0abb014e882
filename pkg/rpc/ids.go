package rpc

import (
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
)

// IDGenerator returns correlation ids for outbound requests. Ids must not repeat
// while a request carrying them is outstanding on the same connection.
type IDGenerator func() string

const randomIDLength = 10

// RandomID returns a 10 character lowercase alphanumeric token taken from a
// random UUID.
func RandomID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:randomIDLength]
}

// NewSequentialIDs returns a generator yielding "1", "2", "3", ... It is safe for
// concurrent use.
func NewSequentialIDs() IDGenerator {
	var next atomic.Uint64
	return func() string {
		return strconv.FormatUint(next.Add(1), 10)
	}
}
