package report

import (
	"strings"
	"testing"

	"github.com/meetscribe/minuted/internal/model"
)

func TestBuildPromptSpeakerNote(t *testing.T) {
	withSpeakers := BuildPrompt(model.MeetingGeneral, "[SPEAKER_0] 大家好", nil)
	if !strings.Contains(withSpeakers, "[SPEAKER_n]") {
		t.Error("speaker note missing for diarized transcript")
	}

	without := BuildPrompt(model.MeetingGeneral, "大家好", nil)
	if strings.Contains(without, "[SPEAKER_n]") {
		t.Error("speaker note present for plain transcript")
	}
}

func TestBuildPromptGlossaryNote(t *testing.T) {
	terms := []model.GlossaryTerm{
		{Term: "Bedrock", Aliases: []string{"基岩", "bed rock"}, Definition: "托管模型服务"},
		{Term: "EKS"},
	}

	prompt := BuildPrompt(model.MeetingTech, "transcript", terms)
	for _, want := range []string{"Bedrock", "基岩", "bed rock", "托管模型服务", "EKS", "术语表"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing glossary content %q", want)
		}
	}

	empty := BuildPrompt(model.MeetingTech, "transcript", nil)
	if strings.Contains(empty, "术语表") {
		t.Error("glossary note present with no terms")
	}
}

func TestBuildPromptTypeFields(t *testing.T) {
	customerOnly := []string{"customerInfo", "awsAttendees", "customerNeeds", "painPoints", "solutionsDiscussed", "commitments", "nextSteps"}

	tests := []struct {
		name         string
		meetingType  model.MeetingType
		wantFields   []string
		customerLike bool
	}{
		{
			name:        "general",
			meetingType: model.MeetingGeneral,
			wantFields:  []string{"keyTopics", "highlights", "lowlights", "decisions", "actions", "participants", "duration"},
		},
		{
			name:        "weekly",
			meetingType: model.MeetingWeekly,
			wantFields:  []string{"teamKPI", "announcements", "projectReviews", "nextMeeting"},
		},
		{
			name:        "tech",
			meetingType: model.MeetingTech,
			wantFields:  []string{"topics", "knowledgeBase", "techStack", "estimate"},
		},
		{
			name:         "customer",
			meetingType:  model.MeetingCustomer,
			wantFields:   customerOnly,
			customerLike: true,
		},
		{
			name:        "unknown_falls_back_to_general",
			meetingType: model.MeetingType("mystery"),
			wantFields:  []string{"keyTopics", "duration"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prompt := BuildPrompt(tt.meetingType, "transcript", nil)

			for _, f := range tt.wantFields {
				if !strings.Contains(prompt, f) {
					t.Errorf("%s prompt missing field %q", tt.meetingType, f)
				}
			}

			if !tt.customerLike {
				for _, f := range customerOnly {
					if strings.Contains(prompt, f) {
						t.Errorf("%s prompt unexpectedly contains customer field %q", tt.meetingType, f)
					}
				}
			}

			if !strings.Contains(prompt, "transcript") {
				t.Error("prompt missing transcript body")
			}
			if !strings.Contains(prompt, jsonOnlyMandate) {
				t.Error("prompt missing JSON-only mandate")
			}
		})
	}
}
