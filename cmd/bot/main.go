package main

import "github.com/Proton-105/himera-swap/internal/app"

func main() {
	app.Main()
}
