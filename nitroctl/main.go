package main

import "github.com/sanxfxteam/NitroGen/nitroctl/cmd"

func main() {
	cmd.Execute()
}
