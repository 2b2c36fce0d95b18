package main

import "github.com/ValentinKolb/evercookie/cmd"

func main() {
	cmd.Execute()
}
