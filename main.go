package main

import "github.com/super-flat/nodewatcher/app/cmd"

func main() {
	cmd.Execute()
}
