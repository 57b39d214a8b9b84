package main

import "github.com/shakram02/go-mcp-mssql/cmd"

func main() {
	cmd.Execute()
}
