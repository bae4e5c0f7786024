// Copyright (c) 2024 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package metrics

import (
	"fmt"
)

// StorageSize is a size in bytes, printed in human readable units.
type StorageSize int64

func (ss StorageSize) String() string {
	switch {
	case ss >= 1000*1000*1000:
		return fmt.Sprintf("%.2f GB", float64(ss)/1e9)
	case ss >= 1000*1000:
		return fmt.Sprintf("%.2f MB", float64(ss)/1e6)
	case ss >= 1000:
		return fmt.Sprintf("%.2f KB", float64(ss)/1e3)
	}
	return fmt.Sprintf("%d B", ss)
}
