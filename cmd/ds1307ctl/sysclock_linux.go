//go:build linux

package main

import (
	"time"

	"golang.org/x/sys/unix"
)

func setSysTime(t time.Time) error {
	tv := unix.NsecToTimeval(t.UnixNano())
	return unix.Settimeofday(&tv)
}
