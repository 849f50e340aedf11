package notify

import (
	"fmt"
	"strings"

	"github.com/super-flat/nodewatcher/membership"
)

const (
	currentNodesTitle = "Current Nodes:"
	shutdownText      = "The node slack notifier has been asked to shutdown, this might be due to the node it's running on shutting down.\n" +
		"Watch the next notification closely to see if a node has been removed."
)

// Attachment is a titled block of text below the message headline
type Attachment struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

// Message is the payload posted to the webhook
type Message struct {
	Text        string       `json:"text"`
	Attachments []Attachment `json:"attachments"`
}

// Format renders a change summary. The headline names the member by its
// address, or by its identity when no address is known, and the attachment
// lists every known address in lexical order.
func Format(summary membership.ChangeSummary) Message {
	subject := string(summary.Identity)
	if summary.Address.IsValid() {
		subject = summary.Address.String()
	}
	return Message{
		Text: fmt.Sprintf("%s has been %s", subject, summary.Type),
		Attachments: []Attachment{
			{
				Title: currentNodesTitle,
				Text:  strings.Join(summary.Current.Addresses(), "\n"),
			},
		},
	}
}

// ShutdownMessage is sent once when the process is asked to stop
func ShutdownMessage() Message {
	return Message{
		Text:        shutdownText,
		Attachments: []Attachment{},
	}
}
