package main

import "github.com/frahmantamala/hrms-identity/cmd"

func main() {
	cmd.Execute()
}
