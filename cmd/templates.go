/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"pagelens/pkg/background"
	"pagelens/pkg/bus"

	"github.com/spf13/cobra"
)

// templatesCmd represents the templates command
var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "List available prompt templates",
	Run: func(cmd *cobra.Command, args []string) {
		_ = args

		cfg, appLogger, err := setup()
		if err != nil {
			fmt.Printf("failed to start: %v\n", err)
			return
		}

		endpoint := newClientBus(cfg, appLogger)
		defer endpoint.Close()

		msg := bus.NewMessage(background.ActionListTemplates, nil)
		resp, err := endpoint.SendRequestTimeout(context.Background(), msg, requestTimeout(cfg))
		if err != nil {
			fmt.Printf("could not reach the background daemon: %v\n", err)
			return
		}

		var reply struct {
			Templates map[string]string `json:"templates"`
		}
		if err := json.Unmarshal(resp.Payload, &reply); err != nil {
			fmt.Printf("unreadable response: %v\n", err)
			return
		}

		names := make([]string, 0, len(reply.Templates))
		for name := range reply.Templates {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			fmt.Println(name)
		}
	},
}

func init() {
	rootCmd.AddCommand(templatesCmd)
}
