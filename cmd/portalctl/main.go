package main

import "adminportal/requests/cmd/portalctl/commands"

func main() {
	commands.Execute()
}
