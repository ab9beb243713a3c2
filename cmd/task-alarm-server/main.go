package main

import "github.com/oshokin/task-alarm/cmd/task-alarm-server/cmd"

func main() {
	cmd.Execute()
}
