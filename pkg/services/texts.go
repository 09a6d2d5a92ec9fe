package services

import (
	"fmt"
	"strings"
)

// HelpText is replied verbatim to a help command.
const HelpText = "📖 使用說明\n\n" +
	"直接輸入任何問題，我會參考我們最近的對話內容回覆你。\n\n" +
	"指令：\n" +
	"・幫助：顯示這則說明\n\n" +
	"小提醒：對話紀錄只用來讓回答更連貫。"

// GenericFallback is sent when handling an event failed for a reason the
// user cannot act on.
const GenericFallback = "抱歉，系統暫時發生問題，請稍後再試一次。"

var helpCommands = []string{"幫助", "help", "/help"}

// IsHelpCommand reports whether text asks for the help message. ASCII
// commands are matched case-insensitively.
func IsHelpCommand(text string) bool {
	t := strings.TrimSpace(text)
	for _, c := range helpCommands {
		if strings.EqualFold(t, c) {
			return true
		}
	}
	return false
}

// WelcomeText greets a new follower, by name when it is known.
func WelcomeText(displayName string) string {
	greeting := "嗨！"
	if name := strings.TrimSpace(displayName); name != "" {
		greeting = fmt.Sprintf("嗨，%s！", name)
	}
	return greeting + "謝謝你加我為好友 🎉\n\n" +
		"有任何問題都可以直接問我，輸入「幫助」可以查看使用說明。"
}
