package main

import "github.com/ksteinfeldt/switchdeck/internal/cmd"

func main() {
	cmd.Execute()
}
