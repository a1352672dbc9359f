package natsbus

import "fmt"

// Topic patterns for NATS pub/sub communication.

func TopicRunEvents(runID string) string {
	return fmt.Sprintf("events.run.%s", runID)
}

func TopicScheduleEvents(scheduleID string) string {
	return fmt.Sprintf("events.schedule.%s", scheduleID)
}

const (
	TopicEventsAll      = "events.>"
	TopicEventsRun      = "events.run.*"
	TopicEventsSchedule = "events.schedule.*"
)
