package main

import "github.com/dpla/ingest-wikimedia/cmd/ingest-wikimedia/cmd"

func main() {
	cmd.Execute()
}
