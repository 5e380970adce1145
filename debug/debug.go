/*************************************************************************
 * Copyright 2026 Cyber Group 20. All rights reserved.
 * Contact: <rootxtrem3@users.noreply.github.com>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package debug installs the daemon's SIGUSR1 diagnostics trap. Each
// signal dumps goroutine stacks plus memory and CPU profiles into a
// fresh temp directory, so a wedged decoy or pipeline stall can be
// inspected without stopping the honeypot.
package debug

import (
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"syscall"
	"time"
)

const (
	cpuProfileWindow = 10 * time.Second
	stackBufStart    = 1024 * 1024
	stackBufMax      = 256 * 1024 * 1024
)

// HandleDebugSignals traps SIGUSR1 for the life of the process; name
// prefixes the temp directory each dump lands in. Install it before
// the listeners come up.
func HandleDebugSignals(name string) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGUSR1)
	go func() {
		for range sigs {
			dir, err := os.MkdirTemp(``, name)
			if err != nil {
				continue
			}
			DumpDebugFiles(dir)
		}
	}()
}

// DumpDebugFiles writes the stack, heap, and CPU captures into dir.
// Failures are silently skipped; a diagnostics dump must never hurt
// the process it is inspecting.
func DumpDebugFiles(dir string) {
	dumpStacks(filepath.Join(dir, `stack`))
	dumpHeap(filepath.Join(dir, `mem.prof`))
	dumpCPU(filepath.Join(dir, `cpu.prof`))
}

func dumpStacks(pth string) {
	// grow until every goroutine fits
	buf := make([]byte, stackBufStart)
	for {
		n := runtime.Stack(buf, true)
		if n < len(buf) {
			buf = buf[:n]
			break
		}
		if len(buf)*2 > stackBufMax {
			return
		}
		buf = make([]byte, len(buf)*2)
	}
	os.WriteFile(pth, buf, 0640)
}

func dumpHeap(pth string) {
	fout, err := os.Create(pth)
	if err != nil {
		return
	}
	defer fout.Close()
	runtime.GC()
	pprof.WriteHeapProfile(fout)
}

func dumpCPU(pth string) {
	fout, err := os.Create(pth)
	if err != nil {
		return
	}
	defer fout.Close()
	if pprof.StartCPUProfile(fout) != nil {
		return
	}
	time.Sleep(cpuProfileWindow)
	pprof.StopCPUProfile()
}
