package main

import "github.com/Tiliavir/trivial-time-log/cmd"

func main() {
	cmd.Execute()
}
