package main

import app "nbbatch/internal/app"

func main() {
	app.Run()
}
