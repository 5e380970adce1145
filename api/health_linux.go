/*************************************************************************
 * Copyright 2026 Cyber Group 20. All rights reserved.
 * Contact: <rootxtrem3@users.noreply.github.com>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

//go:build linux

package api

import (
	"golang.org/x/sys/unix"
)

// freeBytes reports space available to unprivileged writes on the
// filesystem holding pth, zero when the probe fails.
func freeBytes(pth string) uint64 {
	var st unix.Statfs_t
	if err := unix.Statfs(pth, &st); err != nil {
		return 0
	}
	return st.Bavail * uint64(st.Bsize)
}
