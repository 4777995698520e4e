package main

import "github.com/raspiblitz/blitzdash/cmd"

func main() {
	cmd.Execute()
}
