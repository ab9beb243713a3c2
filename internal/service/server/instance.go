package server

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/mitchellh/go-ps"
)

// baseServerExecutable is the daemon binary name without extension.
const baseServerExecutable = "task-alarm-server"

// linuxCommLength is the length Linux truncates process names to.
const linuxCommLength = 15

// ErrAlreadyRunning is returned when another daemon process is found.
var ErrAlreadyRunning = errors.New("another task-alarm-server is already running")

// checkSingleInstance fails if a process other than selfPID runs executable.
func checkSingleInstance(processes func() ([]ps.Process, error), selfPID int, executable string) error {
	processList, err := processes()
	if err != nil {
		return fmt.Errorf("list processes: %w", err)
	}

	for _, process := range processList {
		if process.Pid() == selfPID {
			continue
		}

		if !sameExecutable(process.Executable(), executable) {
			continue
		}

		return fmt.Errorf("%w (pid %d)", ErrAlreadyRunning, process.Pid())
	}

	return nil
}

func sameExecutable(running, executable string) bool {
	if running == executable {
		return true
	}

	return len(running) == linuxCommLength && strings.HasPrefix(executable, running)
}

func serverExecutable() string {
	if runtime.GOOS == "windows" {
		return baseServerExecutable + ".exe"
	}

	return baseServerExecutable
}
