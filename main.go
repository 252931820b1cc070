package main

import "github.com/structiq/fieldscan-agent/cmd"

func main() {
	cmd.Execute()
}
