package main

import "github.com/strrl/focus-signals/internal/cmd"

func main() {
	cmd.Execute()
}
