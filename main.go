package main

import "github.com/kylinctl/kylinctl/cmd"

func main() {
	cmd.Execute()
}
