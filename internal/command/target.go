// Snapvault - Tiered ZFS Snapshot Backup Orchestrator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/snapvault

package command

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Target decides where a command executes.
type Target interface {
	// Wrap returns the command that runs cmd on this target.
	Wrap(cmd Command) Command

	// String describes the target for logs and status output.
	String() string
}

// Local runs commands on this host unchanged.
type Local struct{}

// Wrap implements Target.
func (Local) Wrap(cmd Command) Command { return cmd }

func (Local) String() string { return "local" }

// Host key checking modes accepted by SSH.
const (
	HostKeyCheckingYes       = "yes"
	HostKeyCheckingNo        = "no"
	HostKeyCheckingAcceptNew = "accept-new"
)

// SSH runs commands on a remote host through a non-interactive ssh session.
type SSH struct {
	Host            string
	User            string
	Port            int
	IdentityFile    string
	HostKeyChecking string

	// ConnectTimeout bounds connection setup separately from the command timeout.
	ConnectTimeout time.Duration
}

// Wrap implements Target. The remote argv is shell-quoted into a single
// argument because ssh hands it to the remote login shell. Env is not forwarded.
func (s SSH) Wrap(cmd Command) Command {
	args := make([]string, 0, 16)
	if s.IdentityFile != "" {
		args = append(args, "-i", s.IdentityFile)
	}
	if s.Port > 0 && s.Port != 22 {
		args = append(args, "-p", strconv.Itoa(s.Port))
	}

	checking := s.HostKeyChecking
	if checking == "" {
		checking = HostKeyCheckingAcceptNew
	}
	args = append(args,
		"-o", "BatchMode=yes",
		"-o", "StrictHostKeyChecking="+checking,
	)
	if s.ConnectTimeout > 0 {
		args = append(args, "-o", fmt.Sprintf("ConnectTimeout=%d", int(s.ConnectTimeout.Seconds())))
	}
	args = append(args, s.destination(), QuoteArgv(cmd.Argv()))

	return Command{
		Name:    "ssh",
		Args:    args,
		Timeout: cmd.Timeout,
		Label:   "ssh " + cmd.MetricLabel(),
	}
}

func (s SSH) destination() string {
	if s.User == "" {
		return s.Host
	}
	return s.User + "@" + s.Host
}

func (s SSH) String() string {
	return s.destination()
}

var safeShellWord = regexp.MustCompile(`^[A-Za-z0-9@%+=:,./_-]+$`)

// QuoteArgv renders argv as a POSIX shell command line.
func QuoteArgv(argv []string) string {
	quoted := make([]string, len(argv))
	for i, arg := range argv {
		quoted[i] = quoteWord(arg)
	}
	return strings.Join(quoted, " ")
}

func quoteWord(word string) string {
	if word == "" {
		return "''"
	}
	if safeShellWord.MatchString(word) {
		return word
	}
	return "'" + strings.ReplaceAll(word, "'", `'"'"'`) + "'"
}
