package main

import "github.com/MeKo-Tech/fourierwaves/internal/cmd"

func main() {
	cmd.Execute()
}
