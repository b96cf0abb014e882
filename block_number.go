package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/rotkonetworks/gavel/pkg/rpc"
)

// NormalizeBlockNumber turns a user supplied block number into the 0x-prefixed
// hex quantity nodes expect. Valid 0x-prefixed hex is returned unchanged;
// unsigned decimal is converted.
func NormalizeBlockNumber(s string) (string, error) {
	if digits, ok := strings.CutPrefix(s, "0x"); ok {
		if _, err := strconv.ParseUint(digits, 16, 64); err != nil {
			return "", fmt.Errorf("%w: block number %q is not valid hex", rpc.ErrNumericFormat, s)
		}
		return s, nil
	}

	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return "", fmt.Errorf("%w: block number %q is neither decimal nor 0x-prefixed hex", rpc.ErrNumericFormat, s)
	}
	return hexutil.EncodeUint64(n), nil
}

// ParseBlockNumbers parses a comma separated list of decimal block numbers. An
// empty list yields nil.
func ParseBlockNumbers(list string) ([]uint64, error) {
	if strings.TrimSpace(list) == "" {
		return nil, nil
	}

	parts := strings.Split(list, ",")
	numbers := make([]uint64, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.ParseUint(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: block number %q", rpc.ErrNumericFormat, part)
		}
		numbers = append(numbers, n)
	}
	return numbers, nil
}
