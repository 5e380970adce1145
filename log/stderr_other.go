//go:build !linux
// +build !linux

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
)

// no stderr redirection off linux, the override file just becomes an
// additional writer
func newStderrLogger(fileOverride string) (lgr *Logger, err error) {
	lgr = New(os.Stderr)
	if len(fileOverride) > 0 {
		var fout *os.File
		if fout, err = os.Create(fileOverride); err != nil {
			return
		}
		err = lgr.AddWriter(fout)
	}
	return
}
