package main

import "github.com/dbsmedya/treestream/cmd/treestream/cmd"

func main() {
	cmd.Execute()
}
