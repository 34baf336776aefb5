package notify

import (
	"fmt"
	"strings"

	"github.com/garyjia/travel-desk/internal/application/port"
)

// Render formats a notification as plain text shared by every channel
func Render(n port.Notification) string {
	var b strings.Builder

	if n.Recipient.Name != "" {
		fmt.Fprintf(&b, "Hi %s,\n\n", n.Recipient.Name)
	}
	if n.Message != "" {
		b.WriteString(n.Message)
		b.WriteString("\n\n")
	}

	trip := n.Trip
	fmt.Fprintf(&b, "Trip: %s (%s)\n", trip.Name, trip.ReferenceCode)
	fmt.Fprintf(&b, "Status: %s\n", trip.Status)
	if trip.RequesterName != "" {
		fmt.Fprintf(&b, "Requester: %s\n", trip.RequesterName)
	}
	if trip.DestinationCountry != "" {
		fmt.Fprintf(&b, "Destination: %s (%s)\n", trip.DestinationCountry, trip.TravelType)
	}
	if trip.OptionSelected != "" {
		fmt.Fprintf(&b, "Selected option: %s\n", trip.OptionSelected)
	}
	if trip.TotalCost != nil {
		fmt.Fprintf(&b, "Total cost: %d\n", *trip.TotalCost)
	}

	if len(n.Attachments) > 0 {
		b.WriteString("\nAttachments:\n")
		for _, a := range n.Attachments {
			fmt.Fprintf(&b, "- %s\n", a.FileName)
		}
	}

	if n.ActionLink != "" {
		fmt.Fprintf(&b, "\nReview: %s\n", n.ActionLink)
	}

	return strings.TrimRight(b.String(), "\n")
}
