/*************************************************************************
 * Copyright 2026 Cyber Group 20. All rights reserved.
 * Contact: <rootxtrem3@users.noreply.github.com>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

//go:build !linux

package api

// freeBytes is only probed on linux; elsewhere the health report simply
// shows zero.
func freeBytes(pth string) uint64 {
	return 0
}
