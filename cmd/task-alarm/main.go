package main

import "github.com/oshokin/task-alarm/cmd/task-alarm/cmd"

func main() {
	cmd.Execute()
}
