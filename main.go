package main

import "github.com/sunbk201/prerender/cmd"

func main() {
	cmd.Execute()
}
