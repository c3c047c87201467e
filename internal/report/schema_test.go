package report

import (
	"testing"

	"github.com/meetscribe/minuted/internal/model"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name        string
		meetingType model.MeetingType
		raw         string
		wantErr     bool
	}{
		{
			name:        "minimal_valid",
			meetingType: model.MeetingGeneral,
			raw:         `{"summary":"短会"}`,
		},
		{
			name:        "full_general",
			meetingType: model.MeetingGeneral,
			raw:         `{"summary":"ok","keyTopics":["a"],"actions":[{"task":"t"}],"participants":[]}`,
		},
		{
			name:        "missing_summary",
			meetingType: model.MeetingGeneral,
			raw:         `{"keyTopics":["a"]}`,
			wantErr:     true,
		},
		{
			name:        "empty_summary",
			meetingType: model.MeetingWeekly,
			raw:         `{"summary":""}`,
			wantErr:     true,
		},
		{
			name:        "summary_wrong_type",
			meetingType: model.MeetingGeneral,
			raw:         `{"summary":42}`,
			wantErr:     true,
		},
		{
			name:        "list_section_not_array",
			meetingType: model.MeetingTech,
			raw:         `{"summary":"ok","topics":"not a list"}`,
			wantErr:     true,
		},
		{
			name:        "customer_sections_checked",
			meetingType: model.MeetingCustomer,
			raw:         `{"summary":"ok","painPoints":{"point":"x"}}`,
			wantErr:     true,
		},
		{
			name:        "not_an_object",
			meetingType: model.MeetingGeneral,
			raw:         `["summary"]`,
			wantErr:     true,
		},
		{
			name:        "unknown_sections_ignored",
			meetingType: model.MeetingGeneral,
			raw:         `{"summary":"ok","futureField":{"whatever":true}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.meetingType, []byte(tt.raw))
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
