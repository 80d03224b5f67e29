/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"pagelens/pkg/background"
	"pagelens/pkg/bus"

	"github.com/spf13/cobra"
)

// credentialCmd represents the credential command
var credentialCmd = &cobra.Command{
	Use:   "credential",
	Short: "Manage the stored API credential",
}

var credentialSetCmd = &cobra.Command{
	Use:   "set <value>",
	Short: "Store the API credential",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, appLogger, err := setup()
		if err != nil {
			fmt.Printf("failed to start: %v\n", err)
			return
		}

		endpoint := newClientBus(cfg, appLogger)
		defer endpoint.Close()

		payload, _ := json.Marshal(map[string]string{"value": args[0]})
		msg := bus.NewMessage(background.ActionSaveCredential, payload)

		resp, err := endpoint.SendRequestTimeout(context.Background(), msg, requestTimeout(cfg))
		if err != nil {
			fmt.Printf("could not reach the background daemon: %v\n", err)
			return
		}

		var failure bus.ErrorPayload
		if json.Unmarshal(resp.Payload, &failure) == nil && failure.Error != "" {
			fmt.Printf("credential not saved: %s\n", failure.Error)
			return
		}

		fmt.Println("credential saved")
	},
}

var credentialStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report whether a credential is configured",
	Run: func(cmd *cobra.Command, args []string) {
		_ = args

		cfg, appLogger, err := setup()
		if err != nil {
			fmt.Printf("failed to start: %v\n", err)
			return
		}

		endpoint := newClientBus(cfg, appLogger)
		defer endpoint.Close()

		msg := bus.NewMessage(background.ActionGetCredential, nil)
		resp, err := endpoint.SendRequestTimeout(context.Background(), msg, requestTimeout(cfg))
		if err != nil {
			fmt.Printf("could not reach the background daemon: %v\n", err)
			return
		}

		var reply background.CredentialReply
		if err := json.Unmarshal(resp.Payload, &reply); err != nil {
			fmt.Printf("unreadable response: %v\n", err)
			return
		}

		if reply.Present {
			fmt.Println("credential is configured")
		} else {
			fmt.Println("no credential configured")
		}
	},
}

func init() {
	credentialCmd.AddCommand(credentialSetCmd)
	credentialCmd.AddCommand(credentialStatusCmd)
	rootCmd.AddCommand(credentialCmd)
}
