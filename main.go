/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package main

import "pagelens/cmd"

func main() {
	cmd.Execute()
}
