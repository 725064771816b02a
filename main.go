package main

import (
	"github.com/stephnangue/credcache/cmd"
)

func main() {
	cmd.Execute()
}
