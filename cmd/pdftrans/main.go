package main

import "github.com/MeKo-Tech/pdftrans/cmd/pdftrans/cmd"

func main() {
	cmd.Execute()
}
