package main

import "github.com/OpenTraceLab/diode/cmd/diode/cmd"

func main() {
	cmd.Execute()
}
