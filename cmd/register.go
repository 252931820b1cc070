package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/structiq/fieldscan-agent/internal/backend"
	"github.com/structiq/fieldscan-agent/internal/config"
)

var (
	registerKey         string
	registerURL         string
	registerDisplayName string
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Connect this agent to the inspection backend",
	Long: `Registers this agent with the inspection backend so recorded events
can be synced and the shared risk matrix kept up to date.

Two usage modes:

  1. Provide an existing API key (obtained from the backend):
       fieldscan register --key fsk_xxxxx

  2. Register interactively (agent creates a new entry via the API):
       fieldscan register`,
	RunE: runRegister,
}

func init() {
	registerCmd.Flags().StringVar(&registerKey, "key", "",
		"existing API key from the backend (skips interactive registration)")
	registerCmd.Flags().StringVar(&registerURL, "url", "",
		"backend base URL (overrides config)")
	registerCmd.Flags().StringVar(&registerDisplayName, "name", "",
		"display name for this agent on the backend")
}

func runRegister(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	beURL := registerURL
	if beURL == "" && cfg.Backend.URL != "" {
		beURL = cfg.Backend.URL
	}

	var apiKey, agentKey, displayName string

	if registerKey != "" {
		// --- Flow A: validate an existing key ---
		fmt.Println(headerStyle.Render("Connecting to the backend"))
		fmt.Println()
		apiKey = strings.TrimSpace(registerKey)
		client := backend.NewWithKey(beURL, apiKey)
		fmt.Print("Validating API key ... ")
		info, err := client.Ping(ctx)
		if err != nil {
			fmt.Println("FAIL")
			return fmt.Errorf("key validation failed: %w\n\nCheck your API key and network connection.", err)
		}
		fmt.Printf("OK\n\n")
		agentKey = info.AgentKey
		displayName = info.DisplayName
		fmt.Printf("  Agent:    %s\n", displayName)
		fmt.Printf("  Key:      %s\n", agentKey)
		fmt.Printf("  Status:   %s\n", info.Status)
		if info.LastSeenAt != nil {
			fmt.Printf("  Last seen: %s\n", *info.LastSeenAt)
		}
	} else {
		// --- Flow B: interactive registration ---
		fmt.Println(headerStyle.Render("Register with the inspection backend"))
		fmt.Println()
		fmt.Println(dimStyle.Render("This creates a new agent entry on the backend and issues an API key."))
		fmt.Println()

		name := registerDisplayName
		if name == "" && cfg.Backend.DisplayName != "" {
			name = cfg.Backend.DisplayName
		}
		if name == "" && cfg.Project.Inspector != "" {
			name = cfg.Project.Inspector
		}

		var confirmed bool
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Agent display name").
					Description("Shown on the backend alongside this agent's uploads.").
					Value(&name).
					Validate(func(s string) error {
						if strings.TrimSpace(s) == "" {
							return fmt.Errorf("display name cannot be empty")
						}
						return nil
					}),
				huh.NewConfirm().
					Title("Register this agent with the backend?").
					Value(&confirmed),
			),
		)
		if err := form.Run(); err != nil {
			return fmt.Errorf("cancelled: %w", err)
		}
		if !confirmed {
			fmt.Println(dimStyle.Render("Registration cancelled."))
			return nil
		}

		client := backend.NewWithKey(beURL, "")
		fmt.Print("Registering ... ")
		resp, err := client.Register(ctx, backend.RegisterRequest{
			DisplayName: strings.TrimSpace(name),
			ProjectCode: cfg.Project.Code,
			Description: fmt.Sprintf("fieldscan-agent for project %s", cfg.Project.Code),
		})
		if err != nil {
			fmt.Println("FAIL")
			return fmt.Errorf("registration failed: %w", err)
		}
		fmt.Println("OK")
		apiKey = resp.APIKey
		agentKey = resp.AgentKey
		displayName = strings.TrimSpace(name)
	}

	// Save to config.
	cfg.Backend.Enabled = true
	cfg.Backend.APIKey = apiKey
	cfg.Backend.AgentKey = agentKey
	cfg.Backend.DisplayName = displayName
	if cfg.Backend.URL == "" {
		cfg.Backend.URL = beURL
	}

	cfgPath, _ := config.ConfigPath(cfgFile)
	if err := config.Save(cfg, cfgPath); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	fmt.Println()
	fmt.Println(successStyle.Render("✓ Registered successfully"))
	fmt.Println()
	fmt.Printf("  Agent key:   %s\n", agentKey)
	fmt.Printf("  Config:      %s\n", cfgPath)
	fmt.Println()
	fmt.Println(dimStyle.Render("Next steps:"))
	fmt.Println(dimStyle.Render("  • Refresh the risk matrix:  fieldscan matrix pull"))
	fmt.Println(dimStyle.Render("  • Verify connection:        fieldscan doctor"))
	fmt.Println()

	return nil
}
