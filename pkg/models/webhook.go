package models

import (
	"strings"
	"time"
)

// GroupMessageEvent is the payload the WA Service posts for every message
// seen by an instance.
type GroupMessageEvent struct {
	InstanceName string `json:"instanceName"`
	GroupName    string `json:"groupName"`
	Event        struct {
		Info    MessageInfo    `json:"Info"`
		Message MessageContent `json:"Message"`
	} `json:"event"`
}

type MessageInfo struct {
	ID        string    `json:"ID"`
	Sender    string    `json:"Sender"`
	Chat      string    `json:"Chat"`
	Type      string    `json:"Type"`
	PushName  string    `json:"PushName"`
	Timestamp time.Time `json:"Timestamp"`
	IsFromMe  bool      `json:"IsFromMe"`
}

type MessageContent struct {
	ExtendedTextMessage struct {
		Text string `json:"text"`
	} `json:"extendedTextMessage"`
	Conversation string `json:"conversation"`
}

// Text returns the message body, preferring the extended text form
func (m MessageContent) Text() string {
	if m.ExtendedTextMessage.Text != "" {
		return m.ExtendedTextMessage.Text
	}
	return m.Conversation
}

// IsGroupChat reports whether the chat JID is a group
func (i MessageInfo) IsGroupChat() bool {
	return strings.HasSuffix(i.Chat, "@g.us")
}

// CleanJID removes the device suffix from a WhatsApp JID.
// Example: "6281233784490:24@s.whatsapp.net" -> "6281233784490@s.whatsapp.net"
func CleanJID(jid string) string {
	at := strings.Index(jid, "@")
	if at < 0 {
		return jid
	}
	user, domain := jid[:at], jid[at:]
	if colon := strings.Index(user, ":"); colon >= 0 {
		user = user[:colon]
	}
	return user + domain
}

// GroupMessageResult is returned to the WA Service; it decides whether to
// send Response and whether to hand the message to the AI responder.
type GroupMessageResult struct {
	Matched      bool           `json:"matched"`
	RuleID       string         `json:"ruleId,omitempty"`
	RuleName     string         `json:"ruleName,omitempty"`
	Response     string         `json:"response,omitempty"`
	SkipAI       bool           `json:"skipAi"`
	CapturedData map[string]any `json:"capturedData,omitempty"`
}
