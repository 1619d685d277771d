// Copyright 2025 The relaymcp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mcp

// Method names, exhaustively, per spec.md §6. Client→server methods are
// handled by the server package; server→client methods by the client
// package; both directions share ping.
const (
	MethodInitialize = "initialize"
	MethodPing       = "ping"

	MethodPromptsList = "prompts/list"
	MethodPromptsGet  = "prompts/get"

	MethodResourcesList          = "resources/list"
	MethodResourcesTemplatesList = "resources/templates/list"
	MethodResourcesRead          = "resources/read"
	MethodResourcesSubscribe     = "resources/subscribe"
	MethodResourcesUnsubscribe   = "resources/unsubscribe"

	MethodToolsList = "tools/list"
	MethodToolsCall = "tools/call"

	MethodCompletionComplete = "completion/complete"

	MethodLoggingSetLevel = "logging/setLevel"

	MethodSamplingCreateMessage = "sampling/createMessage"
	MethodRootsList             = "roots/list"
	MethodElicitationCreate     = "elicitation/create"

	MethodTasksList   = "tasks/list"
	MethodTasksCancel = "tasks/cancel"
	MethodTasksGet    = "tasks/get"
	MethodTasksResult = "tasks/result"
)

// Notification method names.
const (
	NotificationInitialized             = "notifications/initialized"
	NotificationCancelled               = "notifications/cancelled"
	NotificationProgress                = "notifications/progress"
	NotificationMessage                 = "notifications/message"
	NotificationResourcesUpdated        = "notifications/resources/updated"
	NotificationResourcesListChanged    = "notifications/resources/list_changed"
	NotificationToolsListChanged        = "notifications/tools/list_changed"
	NotificationPromptsListChanged      = "notifications/prompts/list_changed"
	NotificationCompletionsListChanged  = "notifications/completions/list_changed"
	NotificationTasksListChanged        = "notifications/tasks/list_changed"
	NotificationRootsListChanged        = "notifications/roots/list_changed"
	NotificationTasksStatus             = "notifications/tasks/status"
	NotificationElicitationComplete     = "notifications/elicitation/complete"
)

// LoggingLevel is one of the eight ascending RFC5424-derived severities
// spec.md §6 defines for logging/setLevel and notifications/message.
type LoggingLevel string

const (
	LogDebug     LoggingLevel = "debug"
	LogInfo      LoggingLevel = "info"
	LogNotice    LoggingLevel = "notice"
	LogWarning   LoggingLevel = "warning"
	LogError     LoggingLevel = "error"
	LogCritical  LoggingLevel = "critical"
	LogAlert     LoggingLevel = "alert"
	LogEmergency LoggingLevel = "emergency"
)

var logLevelRank = map[LoggingLevel]int{
	LogDebug: 0, LogInfo: 1, LogNotice: 2, LogWarning: 3,
	LogError: 4, LogCritical: 5, LogAlert: 6, LogEmergency: 7,
}

// AtLeast reports whether level is at least as severe as min.
func (level LoggingLevel) AtLeast(min LoggingLevel) bool {
	return logLevelRank[level] >= logLevelRank[min]
}
