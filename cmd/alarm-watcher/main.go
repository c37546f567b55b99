package main

import "github.com/oshokin/alarm-watcher/cmd/alarm-watcher/cmd"

func main() {
	cmd.Execute()
}
