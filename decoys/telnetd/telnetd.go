/*************************************************************************
 * Copyright 2026 Cyber Group 20. All rights reserved.
 * Contact: <rootxtrem3@users.noreply.github.com>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package telnetd is the telnet decoy: it prompts for credentials,
// records every pair, and never grants access.
package telnetd

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/rootxtrem3/Cyber-Group-20/capture"
	"github.com/rootxtrem3/Cyber-Group-20/decoys"
	"github.com/rootxtrem3/Cyber-Group-20/log"
)

const (
	maxAttempts = 3
	maxLineLen  = 512

	loginBanner = "Ubuntu 20.04.6 LTS\r\n"
	loginPrompt = "Username: "
	passPrompt  = "Password: "
	loginFailed = "\r\nLogin incorrect\r\n"
	closingLine = "\r\nConnection closed by foreign host.\r\n"
)

// telnet protocol bytes stripped from input
const (
	tnIAC = 0xff
	tnSB  = 0xfa
	tnSE  = 0xf0
)

type Telnet struct {
	*decoys.Base
}

func New(pipe decoys.Pipeline, limits decoys.Limits, lgr *log.Logger) *Telnet {
	return &Telnet{
		Base: decoys.NewBase(capture.ServiceTelnet, pipe, limits, lgr, true),
	}
}

// Serve runs the accept loop until the listener closes.
func (t *Telnet) Serve(lst net.Listener) error {
	return t.Base.Serve(lst, t.handle)
}

func (t *Telnet) handle(c *decoys.Conn, sess *capture.Session) error {
	bio := bufio.NewReader(c)
	if _, err := fmt.Fprint(c, loginBanner); err != nil {
		return err
	}
	for i := 0; i < maxAttempts; i++ {
		if _, err := fmt.Fprint(c, loginPrompt); err != nil {
			return err
		}
		user, err := readLine(bio)
		if err != nil {
			return err
		}
		if _, err = fmt.Fprint(c, passPrompt); err != nil {
			return err
		}
		pass, err := readLine(bio)
		if err != nil {
			return err
		}
		if err = t.EmitTracked(sess, capture.EventAuthAttempt, capture.Details{
			Username: user,
			Password: pass,
		}, user); err != nil {
			return err
		}
		if _, err = fmt.Fprint(c, loginFailed); err != nil {
			return err
		}
	}
	fmt.Fprint(c, closingLine)
	return nil
}

// readLine consumes one CRLF terminated line, stripping telnet IAC
// negotiation sequences and control bytes along the way.
func readLine(bio *bufio.Reader) (string, error) {
	var sb strings.Builder
	for {
		b, err := bio.ReadByte()
		if err != nil {
			if err == io.EOF && sb.Len() > 0 {
				return sb.String(), nil
			}
			return ``, err
		}
		switch {
		case b == tnIAC:
			if err = skipIAC(bio); err != nil {
				return ``, err
			}
		case b == '\n':
			return sb.String(), nil
		case b == '\r' || b == 0:
			// swallow; the \n does the terminating
		case sb.Len() < maxLineLen:
			sb.WriteByte(b)
		}
	}
}

// skipIAC consumes the remainder of a telnet command after the IAC
// byte: either a 2 byte option negotiation or a subnegotiation block.
func skipIAC(bio *bufio.Reader) error {
	cmd, err := bio.ReadByte()
	if err != nil {
		return err
	}
	if cmd == tnSB {
		// subnegotiation runs until IAC SE
		for {
			b, err := bio.ReadByte()
			if err != nil {
				return err
			}
			if b != tnIAC {
				continue
			}
			if b, err = bio.ReadByte(); err != nil {
				return err
			} else if b == tnSE {
				return nil
			}
		}
	}
	if cmd >= 0xfb && cmd <= 0xfe {
		// WILL/WONT/DO/DONT carry one option byte
		_, err = bio.ReadByte()
	}
	return err
}
