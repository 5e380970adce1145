/*************************************************************************
 * Copyright 2026 Cyber Group 20. All rights reserved.
 * Contact: <rootxtrem3@users.noreply.github.com>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package sshd

import (
	"bufio"
	"fmt"
	"strings"

	"golang.org/x/crypto/ssh"

	"github.com/rootxtrem3/Cyber-Group-20/capture"
)

const (
	shellMOTD = "Welcome to Ubuntu 20.04.6 LTS (GNU/Linux 5.4.0-144-generic x86_64)\r\n\r\n" +
		" * Documentation:  https://help.ubuntu.com\r\n" +
		" * Management:     https://landscape.canonical.com\r\n\r\n" +
		"Last login: Mon Aug 24 09:14:07 2026 from 10.0.4.11\r\n"
	shellPrompt = "root@server01:~# "

	maxCommandLen = 512
)

// canned outputs for exact command lines
var commandOutputs = map[string]string{
	`ls`:       "bin  data  logs  scripts  backup.tar.gz",
	`ls -la`:   "total 32\ndrwx------  5 root root 4096 Aug 24 09:14 .\ndrwxr-xr-x 19 root root 4096 Jun  2 11:02 ..\n-rw-------  1 root root 3210 Aug 24 09:14 .bash_history\ndrwxr-xr-x  2 root root 4096 Jul 18 22:40 scripts\n-rw-r--r--  1 root root 8427 Jul 18 22:39 backup.tar.gz",
	`pwd`:      "/root",
	`whoami`:   "root",
	`id`:       "uid=0(root) gid=0(root) groups=0(root)",
	`uname`:    "Linux",
	`uname -a`: "Linux server01 5.4.0-144-generic #161-Ubuntu SMP Fri Feb 3 14:49:04 UTC 2023 x86_64 x86_64 x86_64 GNU/Linux",
	`ps`:       "  PID TTY          TIME CMD\n 1193 pts/0    00:00:00 bash\n 1207 pts/0    00:00:00 ps",
	`netstat`:  "Active Internet connections (w/o servers)\nProto Recv-Q Send-Q Local Address           Foreign Address         State",
	`ifconfig`: "eth0: flags=4163<UP,BROADCAST,RUNNING,MULTICAST>  mtu 1500\n        inet 10.0.4.23  netmask 255.255.255.0  broadcast 10.0.4.255",
}

// fallbacks keyed on the first word when the exact line misses
var commandFallbacks = map[string]string{
	`cat`:  "cat: missing operand",
	`sudo`: "sudo: a password is required",
	`ssh`:  "ssh: connect to host: Connection refused",
	`scp`:  "scp: missing destination",
}

// session services one ssh session channel: answers the usual request
// dance, then runs either the interactive shell loop or a single exec.
func (s *SSH) session(ch ssh.Channel, reqs <-chan *ssh.Request, sess *capture.Session) error {
	defer ch.Close()
	execCmds := make(chan string, 1)
	shellStart := make(chan struct{}, 1)
	go func() {
		for req := range reqs {
			switch req.Type {
			case `shell`:
				select {
				case shellStart <- struct{}{}:
				default:
				}
				req.Reply(true, nil)
			case `exec`:
				var p struct{ Command string }
				if ssh.Unmarshal(req.Payload, &p) == nil {
					select {
					case execCmds <- p.Command:
					default:
					}
				}
				req.Reply(true, nil)
			case `pty-req`, `env`, `window-change`:
				req.Reply(true, nil)
			default:
				req.Reply(false, nil)
			}
		}
	}()

	select {
	case cmd := <-execCmds:
		out, err := s.runCommand(sess, cmd)
		if err != nil {
			return err
		}
		fmt.Fprintf(ch, "%s\r\n", out)
		ch.SendRequest(`exit-status`, false, ssh.Marshal(struct{ Status uint32 }{0}))
		return nil
	case <-shellStart:
	}

	if _, err := fmt.Fprint(ch, shellMOTD); err != nil {
		return err
	}
	bio := bufio.NewReader(ch)
	for {
		if _, err := fmt.Fprint(ch, shellPrompt); err != nil {
			return err
		}
		line, err := bio.ReadString('\n')
		line = strings.TrimSpace(line)
		if len(line) > maxCommandLen {
			line = line[:maxCommandLen]
		}
		if line != `` {
			if line == `exit` || line == `quit` || line == `logout` {
				fmt.Fprint(ch, "logout\r\n")
				return nil
			}
			out, cerr := s.runCommand(sess, line)
			if cerr != nil {
				return cerr
			}
			if _, err = fmt.Fprintf(ch, "%s\r\n", out); err != nil {
				return err
			}
		}
		if err != nil {
			return nil
		}
	}
}

// runCommand records the command capture and resolves the canned
// output.
func (s *SSH) runCommand(sess *capture.Session, cmd string) (string, error) {
	if err := s.EmitTracked(sess, capture.EventCommand, capture.Details{
		Command: cmd,
	}, cmd); err != nil {
		return ``, err
	}
	return lookupCommand(cmd), nil
}

func lookupCommand(cmd string) string {
	if out, ok := commandOutputs[cmd]; ok {
		return strings.ReplaceAll(out, "\n", "\r\n")
	}
	first, _, _ := strings.Cut(cmd, ` `)
	if out, ok := commandFallbacks[first]; ok {
		return out
	}
	return fmt.Sprintf("bash: %s: command not found", first)
}
