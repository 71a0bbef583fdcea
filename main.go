package main

import (
	"log"

	"github.com/ilivegod/TickEase/cmd"
	_ "github.com/ilivegod/TickEase/migrations"
)

func main() {
	if err := cmd.Start(); err != nil {
		log.Fatal(err)
	}
}
