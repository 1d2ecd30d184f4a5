package main

import (
	"github.com/spf13/cobra"
)

func main() {
	var root = &cobra.Command{Use: "briefly"}

	root.AddCommand(serveCMD(), briefCMD(), migrateCMD())
	_ = root.Execute()
}
