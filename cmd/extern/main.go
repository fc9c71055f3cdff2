package main

import "github.com/goplus/extern/cmd/extern/internal"

func main() {
	internal.Execute()
}
