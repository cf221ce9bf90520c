// Copyright 2026 The HessianGCN Authors. SPDX-License-Identifier: Apache-2.0

package commandline

import (
	"time"
)

// FormatDuration rounds d to 3 significant digits before printing it, so "1.234567891s" becomes "1.23s"
// and "12.345678ms" becomes "12.3ms".
func FormatDuration(d time.Duration) string {
	if d <= 0 {
		return d.String()
	}
	unit := time.Duration(1)
	for d/unit >= 1000 {
		unit *= 10
	}
	return d.Round(unit).String()
}
