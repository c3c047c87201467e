package report

import (
	"encoding/json"
	"fmt"

	"github.com/meetscribe/minuted/internal/model"
)

// listSections are the array-valued sections per meeting type. Missing
// sections are tolerated (rendered empty downstream); present sections with
// the wrong shape are rejected so a malformed report never reaches export.
var listSections = map[model.MeetingType][]string{
	model.MeetingGeneral:  {"keyTopics", "highlights", "lowlights", "decisions", "actions", "participants"},
	model.MeetingWeekly:   {"announcements", "projectReviews", "decisions", "actions", "participants"},
	model.MeetingTech:     {"topics", "highlights", "lowlights", "actions", "knowledgeBase", "participants", "techStack"},
	model.MeetingCustomer: {"awsAttendees", "customerNeeds", "painPoints", "solutionsDiscussed", "commitments", "nextSteps", "participants"},
}

// Validate checks a parsed report against the per-type schema. A missing or
// empty summary is a hard failure routed through the normal retry path.
func Validate(meetingType model.MeetingType, raw []byte) error {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("report is not a JSON object: %w", err)
	}

	var summary string
	if rawSummary, ok := doc["summary"]; ok {
		if err := json.Unmarshal(rawSummary, &summary); err != nil {
			return fmt.Errorf("summary is not a string: %w", err)
		}
	}
	if summary == "" {
		return fmt.Errorf("report for type %s missing required summary", meetingType)
	}

	for _, section := range listSections[meetingType] {
		rawSection, ok := doc[section]
		if !ok {
			continue
		}
		var list []json.RawMessage
		if err := json.Unmarshal(rawSection, &list); err != nil {
			return fmt.Errorf("section %s is not an array: %w", section, err)
		}
	}
	return nil
}
