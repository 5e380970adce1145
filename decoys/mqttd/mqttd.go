/*************************************************************************
 * Copyright 2026 Cyber Group 20. All rights reserved.
 * Contact: <rootxtrem3@users.noreply.github.com>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package mqttd is the MQTT decoy. It reads a bounded prefix of
// whatever the peer sends, records a probe capture naming the control
// packet it saw, and hangs up. No broker behavior is emulated on
// purpose: a probe is all the observation we want.
package mqttd

import (
	"encoding/hex"
	"net"

	"github.com/rootxtrem3/Cyber-Group-20/capture"
	"github.com/rootxtrem3/Cyber-Group-20/decoys"
	"github.com/rootxtrem3/Cyber-Group-20/log"
)

const probePrefixLen = 64

// MQTT control packet type names keyed by the high nibble of the
// first byte.
var packetNames = map[byte]string{
	1:  `CONNECT`,
	3:  `PUBLISH`,
	8:  `SUBSCRIBE`,
	10: `UNSUBSCRIBE`,
	12: `PINGREQ`,
	14: `DISCONNECT`,
}

type MQTT struct {
	*decoys.Base
}

func New(pipe decoys.Pipeline, limits decoys.Limits, lgr *log.Logger) *MQTT {
	return &MQTT{
		Base: decoys.NewBase(capture.ServiceMQTT, pipe, limits, lgr, false),
	}
}

// Serve runs the accept loop until the listener closes.
func (m *MQTT) Serve(lst net.Listener) error {
	return m.Base.Serve(lst, m.handle)
}

func (m *MQTT) handle(c *decoys.Conn, sess *capture.Session) error {
	buf := make([]byte, probePrefixLen)
	n, err := c.Read(buf)
	if n > 0 {
		m.Emit(sess.SourceIP, sess.SourcePort, capture.EventProbe, capture.Details{
			Probe:       probeName(buf[:n]),
			BodyPreview: hex.EncodeToString(buf[:n]),
			ProbeBytes:  n,
		})
		return nil
	}
	return err
}

func probeName(b []byte) string {
	if len(b) == 0 {
		return `empty`
	}
	if nm, ok := packetNames[b[0]>>4]; ok {
		return nm
	}
	return `unknown`
}
