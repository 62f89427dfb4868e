package main

import "github.com/msandoval/tradeterm/cmd"

func main() {
	cmd.Execute()
}
