package main

import "github.com/jhon1466/PeerDrop/cmd"

func main() {
	cmd.Execute()
}
