package main

import "github.com/Norgate-AV/alv/cmd"

func main() {
	cmd.Execute()
}
