// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package multisig

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
)

// ErrInvalidPath is returned when a derivation path cannot be parsed.
var ErrInvalidPath = errors.New("invalid derivation path")

// ParsePath parses a derivation path such as "m/44'/0/1" or "0/1". Hardened
// indices are marked with a trailing ' or h. An empty path or "m" selects the
// key itself.
func ParsePath(path string) ([]uint32, error) {
	path = strings.TrimSpace(path)
	path = strings.TrimPrefix(path, "m")
	path = strings.TrimPrefix(path, "/")

	if path == "" {
		return nil, nil
	}

	parts := strings.Split(path, "/")
	indices := make([]uint32, 0, len(parts))
	for _, part := range parts {
		hardened := false
		if strings.HasSuffix(part, "'") || strings.HasSuffix(part, "h") {
			hardened = true
			part = part[:len(part)-1]
		}

		index, err := strconv.ParseUint(part, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidPath, part,
				err)
		}

		if index >= hdkeychain.HardenedKeyStart {
			return nil, fmt.Errorf("%w: index %d out of range",
				ErrInvalidPath, index)
		}

		if hardened {
			index += hdkeychain.HardenedKeyStart
		}

		indices = append(indices, uint32(index))
	}

	return indices, nil
}

// FormatPath renders indices in the form accepted by ParsePath.
func FormatPath(path []uint32) string {
	var b strings.Builder
	b.WriteString("m")

	for _, index := range path {
		if index >= hdkeychain.HardenedKeyStart {
			fmt.Fprintf(&b, "/%d'", index-hdkeychain.HardenedKeyStart)
			continue
		}

		fmt.Fprintf(&b, "/%d", index)
	}

	return b.String()
}
