/*
Copyright The Helm Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/moby/term"
	xterm "golang.org/x/term"

	"github.com/depotdl/depotdl/pkg/depot"
)

// passwordPrompter asks for the account password on out and reads it from in.
func passwordPrompter(in io.Reader, out io.Writer) depot.Prompter {
	return func(username string) (string, error) {
		fmt.Fprintf(out, "Password for %s: ", username)
		return readLine(in, out)
	}
}

// readLine reads one line from in. Echo is turned off while a terminal is
// read.
func readLine(in io.Reader, out io.Writer) (string, error) {
	if f, ok := in.(*os.File); ok && xterm.IsTerminal(int(f.Fd())) {
		fd := f.Fd()
		state, err := term.SaveState(fd)
		if err != nil {
			return "", err
		}
		if err := term.DisableEcho(fd, state); err != nil {
			return "", err
		}
		defer term.RestoreTerminal(fd, state)
		defer fmt.Fprintln(out)
	}

	reader := bufio.NewReader(in)
	line, _, err := reader.ReadLine()
	if err != nil {
		return "", err
	}
	return string(line), nil
}
