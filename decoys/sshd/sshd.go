/*************************************************************************
 * Copyright 2026 Cyber Group 20. All rights reserved.
 * Contact: <rootxtrem3@users.noreply.github.com>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package sshd is the SSH decoy. It advertises a plausible OpenSSH
// banner, records every password the peer offers, and rejects them
// all. With the fake shell enabled, the final attempt is "granted" so
// the command capture loop can run; the shell is off by default.
package sshd

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"net"
	"sync/atomic"

	"golang.org/x/crypto/ssh"

	"github.com/rootxtrem3/Cyber-Group-20/capture"
	"github.com/rootxtrem3/Cyber-Group-20/decoys"
	"github.com/rootxtrem3/Cyber-Group-20/log"
)

const defaultMaxAuthAttempts = 5

var errRejected = errors.New("permission denied")

type Config struct {
	Banner          string
	MaxAuthAttempts int
	EnableShell     bool
}

type SSH struct {
	*decoys.Base
	banner      string
	maxAttempts int
	enableShell bool
	signer      ssh.Signer
	attempts    atomic.Uint64
}

// New builds the decoy with a fresh ed25519 host key; the key only
// lives for one process, which is fine for a machine nobody is meant
// to trust.
func New(pipe decoys.Pipeline, limits decoys.Limits, cfg Config, lgr *log.Logger) (*SSH, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		return nil, err
	}
	if cfg.MaxAuthAttempts <= 0 {
		cfg.MaxAuthAttempts = defaultMaxAuthAttempts
	}
	return &SSH{
		Base:        decoys.NewBase(capture.ServiceSSH, pipe, limits, lgr, true),
		banner:      cfg.Banner,
		maxAttempts: cfg.MaxAuthAttempts,
		enableShell: cfg.EnableShell,
		signer:      signer,
	}, nil
}

// AuthAttempts reports password attempts recorded across all sessions.
func (s *SSH) AuthAttempts() uint64 {
	return s.attempts.Load()
}

// Serve runs the accept loop until the listener closes.
func (s *SSH) Serve(lst net.Listener) error {
	return s.Base.Serve(lst, s.handle)
}

func (s *SSH) handle(c *decoys.Conn, sess *capture.Session) error {
	var attempts int
	var budgetErr error
	conf := &ssh.ServerConfig{
		ServerVersion: s.banner,
		MaxAuthTries:  s.maxAttempts,
		PasswordCallback: func(meta ssh.ConnMetadata, password []byte) (*ssh.Permissions, error) {
			attempts++
			s.attempts.Add(1)
			if err := s.EmitTracked(sess, capture.EventAuthAttempt, capture.Details{
				Username:      meta.User(),
				Password:      string(password),
				ClientVersion: string(meta.ClientVersion()),
			}, meta.User()); err != nil {
				budgetErr = err
				return nil, err
			}
			if s.enableShell && attempts >= s.maxAttempts {
				// grant the scripted success so the shell loop runs
				sess.Authenticated = true
				return nil, nil
			}
			return nil, errRejected
		},
	}
	conf.AddHostKey(s.signer)

	sconn, chans, reqs, err := ssh.NewServerConn(c, conf)
	if err != nil {
		if budgetErr != nil {
			return budgetErr
		}
		if attempts >= s.maxAttempts {
			return decoys.ErrAuthLimit
		}
		if attempts == 0 && c.BytesRead() > 0 {
			// peer spoke, but never got through the handshake
			return fmt.Errorf("%w: %v", decoys.ErrProtocol, err)
		}
		return err
	}
	defer sconn.Close()
	go ssh.DiscardRequests(reqs)

	for newch := range chans {
		if newch.ChannelType() != `session` {
			newch.Reject(ssh.UnknownChannelType, `unknown channel type`)
			continue
		}
		ch, chreqs, aerr := newch.Accept()
		if aerr != nil {
			return aerr
		}
		if herr := s.session(ch, chreqs, sess); herr != nil {
			return herr
		}
	}
	return nil
}
