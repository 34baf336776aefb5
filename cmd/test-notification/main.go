// Command test-notification sends a sample trip notification through the
// configured channels so credentials can be checked without running a flow.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/garyjia/travel-desk/internal/application/port"
	"github.com/garyjia/travel-desk/internal/config"
	"github.com/garyjia/travel-desk/internal/container"
	"github.com/garyjia/travel-desk/internal/domain/workflow"
	"github.com/garyjia/travel-desk/pkg/utils"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML config file")
	email := flag.String("email", "", "recipient email address")
	openID := flag.String("lark-open-id", "", "recipient Lark open_id")
	name := flag.String("name", "Test Recipient", "recipient display name")
	flag.Parse()

	if *email == "" && *openID == "" {
		fmt.Fprintln(os.Stderr, "at least one of -email or -lark-open-id is required")
		os.Exit(2)
	}

	fmt.Println("=== Travel Desk Notification Test ===")

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{Level: "debug", OutputPath: "stdout", Format: "console"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cc := cfg.ToContainerConfig()
	notifier, err := container.ProvideNotifier(&cc.Notification, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build notifier: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Channels: %s\n", notifier.Name())

	cost := int64(123450)
	msg := port.Notification{
		Recipient: port.Recipient{Name: *name, Email: *email, LarkOpenID: *openID},
		Subject:   "[Travel Desk] Test notification",
		Trip: port.TripSnapshot{
			ID:                 0,
			ReferenceCode:      "TRV-TEST0000",
			Name:               "Notification smoke test",
			Status:             string(workflow.StateTravelAdminPending),
			RequesterName:      *name,
			DestinationCountry: "US",
			TravelType:         "domestic",
			OptionSelected:     "UA 100 SFO-JFK",
			TotalCost:          &cost,
			UpdatedAt:          time.Now(),
		},
		Message: "This is a test message. No action is required.",
	}
	if cfg.Notification.ActionBaseURL != "" {
		msg.ActionLink = cfg.Notification.ActionBaseURL + "/approvals/0"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := notifier.Notify(ctx, msg); err != nil {
		fmt.Fprintf(os.Stderr, "FAILED: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("SUCCESS: notification delivered on every channel")
}
