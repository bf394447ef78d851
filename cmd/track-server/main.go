package main

import "context"

func main() {
	app := mustBootstrapTrackServer()
	defer app.Close()

	if err := app.Run(); err != nil && err != context.Canceled {
		panic(err)
	}
}
