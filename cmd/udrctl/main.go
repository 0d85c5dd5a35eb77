// Package main implements the udrctl CLI tool.
// It provisions the three-tier deep research application on AWS.
package main

import "github.com/udrlabs/udrctl/cmd/udrctl/cmd"

func main() {
	cmd.Execute()
}
