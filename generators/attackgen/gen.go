/*************************************************************************
 * Copyright 2026 Cyber Group 20. All rights reserved.
 * Contact: <rootxtrem3@users.noreply.github.com>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package main

import (
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Pallinder/go-randomdata"
	"github.com/brianvoe/gofakeit"
	"golang.org/x/crypto/ssh"
)

const connTimeout = 5 * time.Second

// weak pairs first, the way real botnets walk their lists
var bruteForcePairs = [][2]string{
	{`root`, `root`},
	{`admin`, `admin`},
	{`admin`, `1234`},
	{`admin`, `password`},
	{`root`, `password`},
	{`user`, `user`},
	{`guest`, `guest`},
	{`support`, `support`},
	{`pi`, `raspberry`},
	{`ubnt`, `ubnt`},
}

var scannerPaths = []string{
	`/`, `/admin`, `/admin/config.php`, `/wp-admin/`, `/wp-login.php`,
	`/phpmyadmin/index.php`, `/.env`, `/.git/config`, `/manager/html`,
	`/cgi-bin/test.php`, `/shell.php`, `/index.php?id=1'--`,
	`/boaform/admin/formLogin`, `/api/v1/status`,
}

var scannerAgents = []string{
	`sqlmap/1.6.12#stable (https://sqlmap.org)`,
	`Mozilla/5.00 (Nikto/2.1.6)`,
	`masscan/1.3`,
	`zgrab/0.x`,
	`python-requests/2.28.1`,
}

type attack interface {
	run(rng *rand.Rand) error
}

func credentials(rng *rand.Rand) (user, pass string) {
	if rng.Intn(3) > 0 {
		p := bruteForcePairs[rng.Intn(len(bruteForcePairs))]
		return p[0], p[1]
	}
	// the occasional "real" identity mixed into the list
	if rng.Intn(2) == 0 {
		return strings.ToLower(randomdata.SillyName()), gofakeit.Password(true, false, true, false, false, 8)
	}
	return gofakeit.Username(), gofakeit.Password(true, true, true, false, false, 10)
}

type sshAttack struct {
	addr string
}

func (a sshAttack) run(rng *rand.Rand) error {
	user, pass := credentials(rng)
	cl, err := ssh.Dial(`tcp`, a.addr, &ssh.ClientConfig{
		User:            user,
		Auth:            []ssh.AuthMethod{ssh.Password(pass)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         connTimeout,
	})
	if err != nil {
		// rejection is the expected outcome; only a refused dial counts
		// as a failure
		if strings.Contains(err.Error(), `unable to authenticate`) ||
			strings.Contains(err.Error(), `handshake failed`) {
			return nil
		}
		return err
	}
	cl.Close()
	return nil
}

type httpAttack struct {
	addr string
}

func (a httpAttack) run(rng *rand.Rand) error {
	cl := &http.Client{Timeout: connTimeout}
	pth := scannerPaths[rng.Intn(len(scannerPaths))]
	req, err := http.NewRequest(http.MethodGet, `http://`+a.addr+pth, nil)
	if err != nil {
		return err
	}
	req.Header.Set(`User-Agent`, scannerAgents[rng.Intn(len(scannerAgents))])
	resp, err := cl.Do(req)
	if err != nil {
		return err
	}
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	resp.Body.Close()

	if rng.Intn(3) == 0 {
		user, pass := credentials(rng)
		resp, err = cl.PostForm(`http://`+a.addr+`/admin/login.php`, url.Values{
			`username`: {user},
			`password`: {pass},
		})
		if err != nil {
			return err
		}
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
	}
	return nil
}

type telnetAttack struct {
	addr string
}

func (a telnetAttack) run(rng *rand.Rand) error {
	nc, err := net.DialTimeout(`tcp`, a.addr, connTimeout)
	if err != nil {
		return err
	}
	defer nc.Close()
	nc.SetDeadline(time.Now().Add(connTimeout))
	user, pass := credentials(rng)
	buf := make([]byte, 512)
	// walk the prompt sequence; the decoy always re-prompts so a short
	// read is fine
	for _, line := range []string{user, pass} {
		if _, err = nc.Read(buf); err != nil {
			return nil
		}
		if _, err = fmt.Fprintf(nc, "%s\r\n", line); err != nil {
			return nil
		}
	}
	nc.Read(buf)
	return nil
}

type mqttAttack struct {
	addr string
}

func (a mqttAttack) run(rng *rand.Rand) error {
	nc, err := net.DialTimeout(`tcp`, a.addr, connTimeout)
	if err != nil {
		return err
	}
	defer nc.Close()
	nc.SetDeadline(time.Now().Add(connTimeout))
	clientID := strings.ToLower(randomdata.SillyName())
	if len(clientID) > 16 {
		clientID = clientID[:16]
	}
	// minimal MQTT 3.1.1 CONNECT
	varHdr := []byte{0, 4, 'M', 'Q', 'T', 'T', 4, 2, 0, 60, 0, byte(len(clientID))}
	varHdr = append(varHdr, clientID...)
	pkt := append([]byte{0x10, byte(len(varHdr))}, varHdr...)
	if _, err = nc.Write(pkt); err != nil {
		return nil
	}
	nc.Read(make([]byte, 16))
	return nil
}

type cameraAttack struct {
	addr string
}

func (a cameraAttack) run(rng *rand.Rand) error {
	cl := &http.Client{Timeout: connTimeout}
	user, pass := credentials(rng)
	resp, err := cl.PostForm(`http://`+a.addr+`/login`, url.Values{
		`username`: {user},
		`password`: {pass},
	})
	if err != nil {
		return err
	}
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	resp.Body.Close()

	if rng.Intn(2) == 0 {
		resp, err = cl.Get(`http://` + a.addr + `/video`)
		if err != nil {
			return err
		}
		// sip a few frames off the feed then hang up like a scanner would
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
		resp.Body.Close()
	}
	return nil
}
