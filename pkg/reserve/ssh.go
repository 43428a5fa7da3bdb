// Copyright (c) Facebook, Inc. and its affiliates.
//
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

package reserve

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/term"
)

// Connect opens an interactive root shell on the reserved guest,
// authenticating with the local ssh-agent. Guests are short lived and
// get fresh host keys on every reservation, so host key checking is
// intentionally disabled.
func Connect(ctx context.Context, guest string) error {
	socket := os.Getenv("SSH_AUTH_SOCK")
	conn, err := net.Dial("unix", socket)
	if err != nil {
		return fmt.Errorf("cannot connect to the ssh-agent: %w", err)
	}
	defer conn.Close()
	agentClient := agent.NewClient(conn)

	config := &ssh.ClientConfig{
		User: "root",
		Auth: []ssh.AuthMethod{
			ssh.PublicKeysCallback(agentClient.Signers),
		},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
	}

	client, err := ssh.Dial("tcp", net.JoinHostPort(guest, "22"), config)
	if err != nil {
		return fmt.Errorf("cannot connect to root@%s: %w", guest, err)
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return fmt.Errorf("cannot open SSH session: %w", err)
	}
	defer session.Close()

	session.Stdin = os.Stdin
	session.Stdout = os.Stdout
	session.Stderr = os.Stderr

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		state, err := term.MakeRaw(fd)
		if err != nil {
			return fmt.Errorf("cannot switch terminal to raw mode: %w", err)
		}
		defer term.Restore(fd, state)

		width, height, err := term.GetSize(fd)
		if err != nil {
			width, height = 80, 24
		}

		modes := ssh.TerminalModes{
			ssh.ECHO:          1,
			ssh.TTY_OP_ISPEED: 14400,
			ssh.TTY_OP_OSPEED: 14400,
		}
		if err := session.RequestPty(terminalName(), height, width, modes); err != nil {
			return fmt.Errorf("cannot request pseudo terminal: %w", err)
		}
	}

	if err := session.Shell(); err != nil {
		return fmt.Errorf("cannot start remote shell: %w", err)
	}

	done := make(chan error, 1)
	go func() { done <- session.Wait() }()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		// a remote exit status is not a client failure
		var exitErr *ssh.ExitError
		if err != nil && !errors.As(err, &exitErr) {
			return err
		}
		return nil
	}
}

func terminalName() string {
	if name := os.Getenv("TERM"); name != "" {
		return name
	}
	return "xterm"
}
