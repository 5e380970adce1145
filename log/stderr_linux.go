//go:build linux
// +build linux

/*************************************************************************
 * Copyright 2026 Cyber Group 20. All rights reserved.
 * Contact: <rootxtrem3@users.noreply.github.com>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package log

import (
	"os"
	"syscall"
)

func newStderrLogger(fileOverride string) (lgr *Logger, err error) {
	lgr = New(os.Stderr)
	if len(fileOverride) > 0 {
		var oldstderr int
		var fout *os.File
		//get a handle on the output file
		if fout, err = os.Create(fileOverride); err != nil {
			return
		}

		//dup stderr so the console still sees log output
		if oldstderr, err = syscall.Dup(int(os.Stderr.Fd())); err != nil {
			fout.Close()
			return
		} else {
			lgr.AddWriter(os.NewFile(uintptr(oldstderr), "oldstderr"))
		}

		//dupe the output file onto stderr so panics land in the file too
		if err = syscall.Dup3(int(fout.Fd()), int(os.Stderr.Fd()), 0); err != nil {
			fout.Close()
		}
	}
	return
}
