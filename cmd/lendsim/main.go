package main

import (
	"fmt"
)

var (
	version string
	commit  string
)

func main() {
	Execute(fmt.Sprintf("%s-%s", version, commit))
}
