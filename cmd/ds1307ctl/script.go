package main

import (
	"bufio"
	"fmt"
	"io"

	"github.com/google/shlex"
	errgo "gopkg.in/errgo.v1"
)

// runScript runs one command per line of r. Lines are split with shell quoting rules; blank lines and # comments
// are skipped. The first failing command stops the script.
func runScript(e *env, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for line := 1; scanner.Scan(); line++ {
		args, err := shlex.Split(scanner.Text())
		if err != nil {
			return errgo.Notef(err, "line %d", line)
		}
		if len(args) == 0 {
			continue
		}
		if err := runCommand(e, args); err != nil {
			return errgo.NoteMask(err, fmt.Sprintf("line %d", line), errgo.Any)
		}
	}
	return errgo.Mask(scanner.Err())
}
