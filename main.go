package main

import "github.com/jfmyers9/lbscrobble/cmd"

func main() {
	cmd.Execute()
}
