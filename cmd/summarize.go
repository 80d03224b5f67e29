/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"pagelens/pkg/background"
	"pagelens/pkg/bus"

	"github.com/spf13/cobra"
)

var summarizeTemplate string

// summarizeCmd represents the summarize command
var summarizeCmd = &cobra.Command{
	Use:   "summarize [text]",
	Short: "Summarize page content through the background daemon",
	Long:  "Sends page content over the bus to a running daemon and prints the classified generation result. Reads stdin when no argument is given.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, appLogger, err := setup()
		if err != nil {
			fmt.Printf("failed to start: %v\n", err)
			return
		}

		page := resolvePageContent(args)
		if page == "" {
			fmt.Println("nothing to summarize: pass text as an argument or pipe it on stdin")
			return
		}

		endpoint := newClientBus(cfg, appLogger)
		defer endpoint.Close()

		payload, err := json.Marshal(background.GeneratePayload{
			Prompt:   page,
			Template: summarizeTemplate,
		})
		if err != nil {
			fmt.Printf("failed to encode request: %v\n", err)
			return
		}

		msg := bus.NewMessage(background.ActionGenerate, payload)
		resp, err := endpoint.SendRequestTimeout(context.Background(), msg, requestTimeout(cfg))
		if err != nil {
			fmt.Printf("could not reach the background daemon: %v\n", err)
			return
		}

		var reply background.GenerateReply
		if err := json.Unmarshal(resp.Payload, &reply); err != nil {
			fmt.Printf("unreadable response: %v\n", err)
			return
		}

		if reply.Success {
			fmt.Println(reply.Text)
			return
		}
		if reply.Error != "" {
			fmt.Println(reply.Error)
			return
		}
		fmt.Println("The request failed. Please try again.")
	},
}

func resolvePageContent(args []string) string {
	if len(args) > 0 {
		return strings.TrimSpace(strings.Join(args, " "))
	}

	info, err := os.Stdin.Stat()
	if err != nil || info.Mode()&os.ModeCharDevice != 0 {
		return ""
	}

	var lines []string
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}

	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func init() {
	summarizeCmd.Flags().StringVarP(&summarizeTemplate, "template", "t", "summarize", "prompt template to render the page content through")
	rootCmd.AddCommand(summarizeCmd)
}
