package notify

import (
	"unicode"

	"github.com/kubecloud/console-agent/internal/model"
)

// defaultMessages is the fallback copy per event kind when the payload
// carries no message of its own.
var defaultMessages = map[model.Kind]string{
	model.KindDeployment:     "Deployment status update",
	model.KindBilling:        "Billing information update",
	model.KindUser:           "Account information update",
	model.KindNode:           "Node status update",
	model.KindConnected:      "Connected to notification service",
	model.KindWorkflowUpdate: "Workflow status update",
}

const fallbackMessage = "System notification"

// defaultMessage returns the fallback message for a kind.
func defaultMessage(kind model.Kind) string {
	if msg, ok := defaultMessages[kind]; ok {
		return msg
	}
	return fallbackMessage
}

// defaultSubject is the kind with its first letter uppercased.
func defaultSubject(kind model.Kind) string {
	s := string(kind)
	if s == "" {
		return "Notification"
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
