package main

import "nightcircle/internal/app"

func main() {
	app.Run()
}
